package detailcache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/metrics"
)

// RefreshConfig is the fetch policy: concurrency, pacing and retries
type RefreshConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency" validate:"min=1,max=4"`
	RequestDelay   time.Duration `mapstructure:"request_delay" validate:"min=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	BackoffBase    time.Duration `mapstructure:"backoff_base" validate:"min=0"`
	BackoffMax     time.Duration `mapstructure:"backoff_max" validate:"min=0"`
}

// DefaultRefreshConfig returns a polite default policy
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		MaxConcurrency: 2,
		RequestDelay:   time.Second,
		RequestTimeout: 30 * time.Second,
		MaxAttempts:    3,
		BackoffBase:    2 * time.Second,
		BackoffMax:     30 * time.Second,
	}
}

// RefreshReport summarises one refresh batch
type RefreshReport struct {
	Requested    int
	Fetched      int // ids with at least one fetch attempt
	Merged       int
	RecordsAdded int
	Failed       map[string]error
	NotStarted   []string // ids never attempted because the context ended
	Duration     time.Duration
}

// limitedFetcher is a fetcher that sends retries of its own
type limitedFetcher interface {
	UseLimiter(l *rate.Limiter)
}

// Refresher fills the cache from a fetcher using a bounded worker pool
// sharing one rate limiter
type Refresher struct {
	cache   *Cache
	fetcher Fetcher
	cfg     RefreshConfig
	limiter *rate.Limiter
	log     *logger.FetchLogger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRefresher creates a refresher
func NewRefresher(cache *Cache, fetcher Fetcher, cfg RefreshConfig, log *logger.FetchLogger) *Refresher {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}
	limiter := rate.NewLimiter(limit, 1)
	if lf, ok := fetcher.(limitedFetcher); ok {
		lf.UseLimiter(limiter)
	}
	return &Refresher{
		cache:   cache,
		fetcher: fetcher,
		cfg:     cfg,
		limiter: limiter,
		log:     log,
		sleep:   sleepContext,
	}
}

// RefreshMissing fetches every candidate not yet cached
func (r *Refresher) RefreshMissing(ctx context.Context, candidates []string) *RefreshReport {
	return r.Refresh(ctx, r.cache.MissingIDs(candidates))
}

// Refresh fetches and merges each id. A failure for one id never affects
// the others. Once ctx ends no new fetch starts; in-flight ones run to
// completion or their own timeout.
func (r *Refresher) Refresh(ctx context.Context, ids []string) *RefreshReport {
	start := time.Now()
	report := &RefreshReport{Requested: len(ids), Failed: make(map[string]error)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.MaxConcurrency)
	for i, id := range ids {
		if ctx.Err() != nil {
			report.NotStarted = append(report.NotStarted, ids[i:]...)
			break
		}
		id := id
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				report.NotStarted = append(report.NotStarted, id)
				mu.Unlock()
				return nil
			}
			added, attempted, err := r.refreshOne(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if attempted {
				report.Fetched++
			}
			if err != nil {
				report.Failed[id] = err
				return nil
			}
			report.Merged++
			report.RecordsAdded += added
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(report.NotStarted)

	report.Duration = time.Since(start)
	metrics.RecordRefreshDuration(report.Duration.Seconds())
	metrics.UpdateCacheProfiles(r.cache.Len())
	r.log.LogRefreshSummary(report.Requested, report.Fetched, report.Merged, len(report.Failed), report.Duration)
	return report
}

func (r *Refresher) refreshOne(ctx context.Context, id string) (int, bool, error) {
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
		attempts = attempt
		metrics.RecordFetchAttempt()
		r.log.LogFetchAttempt(id, attempt)

		// detached so cancelling the batch does not abort a request already sent
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RequestTimeout)
		profile, err := r.fetcher.Fetch(reqCtx, id)
		cancel()
		if err == nil {
			return r.cache.Merge(id, profile.Pedigree, profile.Performances), true, nil
		}

		lastErr = err
		// an open breaker stays open for its cooldown, longer than any backoff here
		if IsPermanent(err) || errors.Is(err, ErrCircuitOpen) || attempt == r.cfg.MaxAttempts {
			break
		}
		wait := r.backoff(attempt)
		r.log.LogFetchRetry(id, attempt, wait, err)
		if err := r.sleep(ctx, wait); err != nil {
			break
		}
	}

	metrics.RecordFetchFailure(ErrorCode(lastErr))
	r.log.LogFetchFailure(id, attempts, IsPermanent(lastErr), lastErr)
	return 0, attempts > 0, lastErr
}

// backoff doubles from BackoffBase per attempt, capped at BackoffMax
func (r *Refresher) backoff(attempt int) time.Duration {
	d := r.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if r.cfg.BackoffMax > 0 && d >= r.cfg.BackoffMax {
			return r.cfg.BackoffMax
		}
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
