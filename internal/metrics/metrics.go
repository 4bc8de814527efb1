// Package metrics provides the centralized Prometheus metrics registry.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "race_edge"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// backtest
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(RacesProcessedTotal)
		registry.MustRegister(RacesSkippedTotal)
		registry.MustRegister(BetsTotal)
		registry.MustRegister(HitsTotal)
		registry.MustRegister(StakeTotal)
		registry.MustRegister(ReturnTotal)
		registry.MustRegister(BacktestROI)

		// cache refresh
		registry.MustRegister(FetchAttemptsTotal)
		registry.MustRegister(FetchFailuresTotal)
		registry.MustRegister(RefreshDuration)
		registry.MustRegister(CacheProfiles)

		// predictor
		registry.MustRegister(PredictionsTotal)
		registry.MustRegister(PredictionErrorsTotal)
		registry.MustRegister(PredictionLatency)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}
