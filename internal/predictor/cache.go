package predictor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/metrics"
)

// CacheKey identifies a memoised prediction
type CacheKey struct {
	RaceID       string
	HorseID      string
	ModelVersion string
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.RaceID, k.HorseID, k.ModelVersion)
}

// Cached memoises another predictor. Repeated runs over the same window
// reuse the predictions of the first.
type Cached struct {
	next    Predictor
	version string
	cache   *cache.Cache
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewCached wraps next with a TTL cache
func NewCached(next Predictor, modelVersion string, ttl time.Duration) *Cached {
	return &Cached{
		next:    next,
		version: modelVersion,
		cache:   cache.New(ttl, ttl*2),
	}
}

// Predict returns the cached prediction or asks the wrapped predictor
func (c *Cached) Predict(ctx context.Context, fv features.Vector) (Prediction, error) {
	key := CacheKey{RaceID: fv.RaceID, HorseID: fv.HorseID, ModelVersion: c.version}.String()
	if v, ok := c.cache.Get(key); ok {
		if p, ok := v.(Prediction); ok {
			c.hits.Add(1)
			metrics.RecordPrediction("cached")
			return p, nil
		}
	}
	c.misses.Add(1)

	p, err := c.next.Predict(ctx, fv)
	if err != nil {
		return Prediction{}, err
	}
	c.cache.SetDefault(key, p)
	return p, nil
}

// Stats returns cache statistics
func (c *Cached) Stats() (hits, misses uint64, ratio float64) {
	hits, misses = c.hits.Load(), c.misses.Load()
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// Clear flushes the cache
func (c *Cached) Clear() {
	c.cache.Flush()
	c.hits.Store(0)
	c.misses.Store(0)
}
