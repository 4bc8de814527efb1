// Package detailcache holds per-horse past performances and pedigree facts,
// merged incrementally from an external fetcher and persisted to disk.
package detailcache

import (
	"sort"
	"sync"
	"time"

	"github.com/yourusername/race-edge/internal/models"
)

// Cache maps horse ids to profiles. Safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	profiles map[string]models.HorseProfile
	now      func() time.Time
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		profiles: make(map[string]models.HorseProfile),
		now:      time.Now,
	}
}

// Get returns a copy of the profile for a horse
func (c *Cache) Get(horseID string) (models.HorseProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.profiles[horseID]
	if !ok {
		return models.HorseProfile{}, false
	}
	return clone(p), true
}

// ProfileAsOf returns the profile restricted to performances dated strictly
// before asOf. It is the only lookup the backtest uses.
func (c *Cache) ProfileAsOf(horseID string, asOf time.Time) (models.HorseProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.profiles[horseID]
	if !ok {
		return models.HorseProfile{}, false
	}
	return p.Before(asOf), true
}

// Merge adds the records whose race id is not yet held for the horse and
// re-sorts newest first. A non-empty pedigree replaces the stored one field
// by field. Every merge is a successful fetch and marks the profile fresh,
// even when nothing was added. Returns the number of records added.
func (c *Cache) Merge(horseID string, pedigree models.Pedigree, records []models.EntryRecord) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.profiles[horseID]
	if !ok {
		p = models.HorseProfile{HorseID: horseID}
	}
	if pedigree.Sire != "" {
		p.Pedigree.Sire = pedigree.Sire
	}
	if pedigree.Damsire != "" {
		p.Pedigree.Damsire = pedigree.Damsire
	}

	seen := make(map[string]struct{}, len(p.Performances)+len(records))
	merged := make([]models.EntryRecord, 0, len(p.Performances)+len(records))
	for _, r := range p.Performances {
		seen[r.RaceID] = struct{}{}
		merged = append(merged, r)
	}
	added := 0
	for _, r := range records {
		if r.RaceID == "" {
			continue
		}
		if _, dup := seen[r.RaceID]; dup {
			continue
		}
		seen[r.RaceID] = struct{}{}
		r.HorseID = horseID
		merged = append(merged, r)
		added++
	}
	models.SortPerformances(merged)
	p.Performances = merged
	p.UpdatedAt = c.now().UTC()
	c.profiles[horseID] = p
	return added
}

// MissingIDs returns the candidate ids not present in the cache, sorted and
// without duplicates
func (c *Cache) MissingIDs(candidates []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	var missing []string
	for _, id := range candidates {
		if id == "" {
			continue
		}
		if _, ok := c.profiles[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	sort.Strings(missing)
	return missing
}

// Len returns the number of cached horses
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}

// IDs returns every cached horse id, sorted
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idsLocked()
}

func (c *Cache) idsLocked() []string {
	ids := make([]string, 0, len(c.profiles))
	for id := range c.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StaleIDs returns cached horses not updated since the cutoff
func (c *Cache) StaleIDs(cutoff time.Time) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []string
	for id, p := range c.profiles {
		if p.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func clone(p models.HorseProfile) models.HorseProfile {
	p.Performances = append([]models.EntryRecord(nil), p.Performances...)
	return p
}
