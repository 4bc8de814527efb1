package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-edge/internal/detailcache"
)

// CandidateSource lists horses that appear in the entry table
type CandidateSource interface {
	HorseIDs(ctx context.Context, since time.Time) ([]string, error)
}

// ProfileRefresher fetches and merges horse profiles
type ProfileRefresher interface {
	Refresh(ctx context.Context, ids []string) *detailcache.RefreshReport
}

// CacheRefreshConfig tunes which horses a refresh picks up
type CacheRefreshConfig struct {
	// LookbackDays limits candidates to horses entered recently; 0 means all
	LookbackDays int
	// StaleAfter re-fetches cached profiles not updated within the duration; 0 disables
	StaleAfter time.Duration
	// SavePath persists the cache after each run when set
	SavePath string
	Timeout  time.Duration
}

// CacheRefreshJob fills the detail cache with horses missing from it
type CacheRefreshJob struct {
	source    CandidateSource
	cache     *detailcache.Cache
	refresher ProfileRefresher
	cfg       CacheRefreshConfig
	logger    logrus.FieldLogger
	now       func() time.Time
	done      func(*detailcache.RefreshReport, error)
}

// NewCacheRefreshJob creates a refresh job
func NewCacheRefreshJob(source CandidateSource, cache *detailcache.Cache, refresher ProfileRefresher, cfg CacheRefreshConfig, logger logrus.FieldLogger) *CacheRefreshJob {
	return &CacheRefreshJob{
		source:    source,
		cache:     cache,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger.WithField("component", "cache_refresh_job"),
		now:       time.Now,
	}
}

// OnComplete registers fn to observe the outcome of every run
func (j *CacheRefreshJob) OnComplete(fn func(report *detailcache.RefreshReport, err error)) {
	j.done = fn
}

// Candidates returns the horses a run would fetch: missing ones plus stale
// cached ones, sorted
func (j *CacheRefreshJob) Candidates(ctx context.Context) ([]string, error) {
	now := j.now().UTC()
	var since time.Time
	if j.cfg.LookbackDays > 0 {
		since = now.AddDate(0, 0, -j.cfg.LookbackDays)
	}
	ids, err := j.source.HorseIDs(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate horses: %w", err)
	}

	set := make(map[string]struct{})
	for _, id := range j.cache.MissingIDs(ids) {
		set[id] = struct{}{}
	}
	if j.cfg.StaleAfter > 0 {
		for _, id := range j.cache.StaleIDs(now.Add(-j.cfg.StaleAfter)) {
			set[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Run performs one refresh and saves the cache when configured
func (j *CacheRefreshJob) Run(ctx context.Context) (*detailcache.RefreshReport, error) {
	report, err := j.run(ctx)
	if j.done != nil {
		j.done(report, err)
	}
	return report, err
}

func (j *CacheRefreshJob) run(ctx context.Context) (*detailcache.RefreshReport, error) {
	if j.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.cfg.Timeout)
		defer cancel()
	}

	ids, err := j.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		j.logger.Info("Detail cache up to date, nothing to refresh")
		return &detailcache.RefreshReport{Failed: map[string]error{}}, nil
	}

	report := j.refresher.Refresh(ctx, ids)
	if j.cfg.SavePath != "" && report.Merged > 0 {
		if err := j.cache.Save(j.cfg.SavePath); err != nil {
			return report, fmt.Errorf("failed to save detail cache: %w", err)
		}
		j.logger.WithFields(logrus.Fields{"path": j.cfg.SavePath, "profiles": j.cache.Len()}).Info("Detail cache saved")
	}
	return report, nil
}
