package detailcache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/yourusername/race-edge/internal/models"
)

const fileVersion = 1

type cacheFile struct {
	Version  int                   `msgpack:"version"`
	SavedAt  time.Time             `msgpack:"saved_at"`
	Profiles []models.HorseProfile `msgpack:"profiles"`
}

// Load reads a cache file. A missing or unreadable file yields an empty
// cache; the problem is logged, never returned.
func Load(path string, log logrus.FieldLogger) *Cache {
	c := New()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.WithField("path", path).Info("Detail cache file not found, starting empty")
		} else {
			log.WithError(err).WithField("path", path).Warn("Detail cache unreadable, starting empty")
		}
		return c
	}

	var file cacheFile
	if err := msgpack.Unmarshal(data, &file); err != nil {
		log.WithError(err).WithField("path", path).Warn("Detail cache corrupt, starting empty")
		return c
	}
	if file.Version != fileVersion {
		log.WithFields(logrus.Fields{"path": path, "version": file.Version}).Warn("Detail cache version mismatch, starting empty")
		return c
	}

	for _, p := range file.Profiles {
		if p.HorseID == "" {
			continue
		}
		c.restore(p)
	}
	log.WithFields(logrus.Fields{"path": path, "profiles": c.Len()}).Info("Detail cache loaded")
	return c
}

// restore inserts a loaded profile, re-establishing the ordering invariants
func (c *Cache) restore(p models.HorseProfile) {
	// msgpack decodes timestamps in the local zone
	updated := p.UpdatedAt.UTC()
	for i := range p.Performances {
		p.Performances[i].Date = p.Performances[i].Date.UTC()
	}
	c.Merge(p.HorseID, p.Pedigree, p.Performances)

	c.mu.Lock()
	defer c.mu.Unlock()
	stored := c.profiles[p.HorseID]
	stored.UpdatedAt = updated
	c.profiles[p.HorseID] = stored
}

// Save writes the whole cache to path atomically
func (c *Cache) Save(path string) error {
	c.mu.RLock()
	file := cacheFile{Version: fileVersion, SavedAt: c.now().UTC()}
	for _, id := range c.idsLocked() {
		file.Profiles = append(file.Profiles, c.profiles[id])
	}
	data, err := msgpack.Marshal(&file)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode detail cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write detail cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync detail cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close detail cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace detail cache: %w", err)
	}
	return nil
}
