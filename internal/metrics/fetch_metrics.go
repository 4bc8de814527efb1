package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cache refresh metrics
var (
	FetchAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_attempts_total",
		Help:      "Total number of horse profile fetch attempts",
	})

	FetchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_failures_total",
		Help:      "Horse profile fetches that gave up, by error code",
	}, []string{"code"})

	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cache_refresh_duration_seconds",
		Help:      "Duration of detail cache refresh batches in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})

	CacheProfiles = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_profiles",
		Help:      "Number of horse profiles held in the detail cache",
	})
)

// RecordFetchAttempt records one fetch attempt.
func RecordFetchAttempt() {
	FetchAttemptsTotal.Inc()
}

// RecordFetchFailure records a fetch that gave up.
func RecordFetchFailure(code string) {
	FetchFailuresTotal.WithLabelValues(code).Inc()
}

// RecordRefreshDuration records the duration of a refresh batch.
func RecordRefreshDuration(durationSeconds float64) {
	RefreshDuration.Observe(durationSeconds)
}

// UpdateCacheProfiles sets the cached profile count.
func UpdateCacheProfiles(count int) {
	CacheProfiles.Set(float64(count))
}
