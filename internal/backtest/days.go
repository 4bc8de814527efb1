package backtest

import (
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/race-edge/internal/entrystore"
	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/stats"
)

// dayContext is everything known before the first race of a date
type dayContext struct {
	snapshot *stats.Snapshot
	history  map[string][]models.EntryRecord
}

// dayCache shares day contexts between concurrent runs over the same store.
// Contexts are immutable, so any number of runs may read one.
type dayCache struct {
	store      *entrystore.Store
	thresholds stats.Thresholds
	items      *cache.Cache
	group      singleflight.Group
}

func newDayCache(store *entrystore.Store, th stats.Thresholds) *dayCache {
	return &dayCache{
		store:      store,
		thresholds: th,
		items:      cache.New(2*time.Minute, 5*time.Minute),
	}
}

func (d *dayCache) get(day time.Time) *dayContext {
	key := day.Format("2006-01-02")
	if v, ok := d.items.Get(key); ok {
		return v.(*dayContext)
	}
	v, _, _ := d.group.Do(key, func() (interface{}, error) {
		if v, ok := d.items.Get(key); ok {
			return v, nil
		}
		view := d.store.Before(day)
		dc := &dayContext{
			snapshot: stats.Compute(view, day, d.thresholds),
			history: entrystore.Group(view, func(e models.EntryRecord) (string, bool) {
				return e.HorseID, e.HorseID != ""
			}),
		}
		d.items.SetDefault(key, dc)
		return dc, nil
	})
	return v.(*dayContext)
}

// historySource serves horse histories from the detail cache, filled in
// with the horse's earlier rows from the entry store
type historySource struct {
	profiles features.ProfileSource
	history  map[string][]models.EntryRecord
}

func (h historySource) ProfileAsOf(horseID string, asOf time.Time) (models.HorseProfile, bool) {
	var (
		profile models.HorseProfile
		found   bool
	)
	if h.profiles != nil {
		profile, found = h.profiles.ProfileAsOf(horseID, asOf)
	}
	rows := h.history[horseID]
	if len(rows) == 0 {
		return profile, found
	}

	profile.HorseID = horseID
	seen := make(map[string]struct{}, len(profile.Performances))
	perfs := append([]models.EntryRecord(nil), profile.Performances...)
	for _, p := range perfs {
		seen[p.RaceID] = struct{}{}
	}
	for _, r := range rows {
		if _, dup := seen[r.RaceID]; dup || !r.Date.Before(asOf) {
			continue
		}
		seen[r.RaceID] = struct{}{}
		perfs = append(perfs, r)
	}
	models.SortPerformances(perfs)
	profile.Performances = perfs

	if profile.Pedigree.Sire == "" || profile.Pedigree.Damsire == "" {
		for _, p := range perfs {
			if profile.Pedigree.Sire == "" {
				profile.Pedigree.Sire = p.Sire
			}
			if profile.Pedigree.Damsire == "" {
				profile.Pedigree.Damsire = p.Damsire
			}
		}
	}
	return profile, true
}
