package metrics

import "github.com/prometheus/client_golang/prometheus"

// Predictor metrics
var (
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Predictions served by source",
	}, []string{"source"})

	PredictionErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prediction_errors_total",
		Help:      "Failed predictions by source",
	}, []string{"source"})

	PredictionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "prediction_latency_seconds",
		Help:      "Latency of prediction calls in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})
)

// RecordPrediction records a served prediction.
func RecordPrediction(source string) {
	PredictionsTotal.WithLabelValues(source).Inc()
}

// RecordPredictionError records a failed prediction.
func RecordPredictionError(source string) {
	PredictionErrorsTotal.WithLabelValues(source).Inc()
}

// RecordPredictionLatency records prediction latency.
func RecordPredictionLatency(source string, durationSeconds float64) {
	PredictionLatency.WithLabelValues(source).Observe(durationSeconds)
}
