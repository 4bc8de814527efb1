package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counters
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by method and status",
	}, []string{"method", "status"})

	RacesProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "races_processed_total",
		Help:      "Races settled by policy",
	}, []string{"policy"})

	RacesSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "races_skipped_total",
		Help:      "Races skipped by policy and reason",
	}, []string{"policy", "reason"})

	BetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_total",
		Help:      "Bets settled by policy and bet type",
	}, []string{"policy", "bet_type"})

	HitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hits_total",
		Help:      "Winning bets by policy and bet type",
	}, []string{"policy", "bet_type"})

	StakeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stake_total",
		Help:      "Total stake in currency units by policy",
	}, []string{"policy"})

	ReturnTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "return_total",
		Help:      "Total realized payout in currency units by policy",
	}, []string{"policy"})
)

// Backtest gauges and histograms
var (
	BacktestROI = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backtest_roi_percent",
		Help:      "ROI of the latest run for each policy",
	}, []string{"policy"})

	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// RecordBacktestRun records a backtest run event.
// method should be one of: "historical_replay", "monte_carlo", "walk_forward"
// status should be one of: "success", "failure"
func RecordBacktestRun(method, status string) {
	BacktestRunsTotal.WithLabelValues(method, status).Inc()
}

// RecordBacktestDuration records backtest duration.
func RecordBacktestDuration(durationSeconds float64) {
	BacktestDuration.Observe(durationSeconds)
}

// RecordRaceProcessed records a settled race.
func RecordRaceProcessed(policy string) {
	RacesProcessedTotal.WithLabelValues(policy).Inc()
}

// RecordRaceSkipped records a skipped race.
func RecordRaceSkipped(policy, reason string) {
	RacesSkippedTotal.WithLabelValues(policy, reason).Inc()
}

// RecordSettlement records one settled bet.
func RecordSettlement(policy, betType string, stake, payout float64, hit bool) {
	BetsTotal.WithLabelValues(policy, betType).Inc()
	if hit {
		HitsTotal.WithLabelValues(policy, betType).Inc()
	}
	StakeTotal.WithLabelValues(policy).Add(stake)
	ReturnTotal.WithLabelValues(policy).Add(payout)
}

// UpdateROI sets the ROI gauge for a policy.
func UpdateROI(policy string, roi float64) {
	BacktestROI.WithLabelValues(policy).Set(roi)
}
