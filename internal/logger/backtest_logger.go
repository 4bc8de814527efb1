package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BacktestLogger provides dedicated logging for backtest runs.
type BacktestLogger struct {
	*logrus.Entry
}

// NewBacktestLogger creates a new backtest logger.
func NewBacktestLogger(baseLogger *logrus.Logger) *BacktestLogger {
	return &BacktestLogger{
		Entry: baseLogger.WithField("component", "backtest"),
	}
}

// WithRun returns a logger tagged with a run id and policy name.
func (bl *BacktestLogger) WithRun(runID, policy string) *BacktestLogger {
	return &BacktestLogger{Entry: bl.WithFields(logrus.Fields{
		"run_id": runID,
		"policy": policy,
	})}
}

// LogRaceSkipped logs a race left out of the ledger.
func (bl *BacktestLogger) LogRaceSkipped(raceID string, raceDate time.Time, reason string, err error) {
	fields := logrus.Fields{
		"race_id":   raceID,
		"race_date": raceDate.Format("2006-01-02"),
		"reason":    reason,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	bl.WithFields(fields).Warn("Race skipped")
}

// LogRaceSettled logs the settlement of one race.
func (bl *BacktestLogger) LogRaceSettled(raceID string, bets, hits int, stake, payout float64) {
	bl.WithFields(logrus.Fields{
		"race_id": raceID,
		"bets":    bets,
		"hits":    hits,
		"stake":   stake,
		"payout":  payout,
	}).Debug("Race settled")
}

// LogReconciliation logs a payout list that needed reconciling.
func (bl *BacktestLogger) LogReconciliation(raceID, betType, rule string, combinations, amounts int) {
	bl.WithFields(logrus.Fields{
		"race_id":      raceID,
		"bet_type":     betType,
		"rule":         rule,
		"combinations": combinations,
		"amounts":      amounts,
	}).Warn("Payout lists reconciled")
}

// LogRunSummary logs the final figures of a run.
func (bl *BacktestLogger) LogRunSummary(races, skipped, bets, hits int, stake, ret, roi float64, duration time.Duration) {
	bl.WithFields(logrus.Fields{
		"races":        races,
		"skipped":      skipped,
		"bets":         bets,
		"hits":         hits,
		"total_stake":  stake,
		"total_return": ret,
		"roi":          roi,
		"duration_ms":  duration.Milliseconds(),
	}).Info("Backtest run completed")
}
