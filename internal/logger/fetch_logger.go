package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// FetchLogger provides dedicated logging for detail cache refreshes.
type FetchLogger struct {
	*logrus.Entry
}

// NewFetchLogger creates a new fetch logger.
func NewFetchLogger(baseLogger *logrus.Logger) *FetchLogger {
	return &FetchLogger{
		Entry: baseLogger.WithField("component", "fetch"),
	}
}

// LogFetchAttempt logs one fetch attempt for a horse.
func (fl *FetchLogger) LogFetchAttempt(horseID string, attempt int) {
	fl.WithFields(logrus.Fields{
		"horse_id": horseID,
		"attempt":  attempt,
	}).Debug("Fetching horse profile")
}

// LogFetchRetry logs a transient failure that will be retried.
func (fl *FetchLogger) LogFetchRetry(horseID string, attempt int, backoff time.Duration, err error) {
	fl.WithFields(logrus.Fields{
		"horse_id":   horseID,
		"attempt":    attempt,
		"backoff_ms": backoff.Milliseconds(),
		"error":      err.Error(),
	}).Info("Fetch failed, retrying")
}

// LogFetchFailure logs a horse whose fetch gave up.
func (fl *FetchLogger) LogFetchFailure(horseID string, attempts int, permanent bool, err error) {
	fl.WithFields(logrus.Fields{
		"horse_id":  horseID,
		"attempts":  attempts,
		"permanent": permanent,
		"error":     err.Error(),
	}).Warn("Fetch failed")
}

// LogRefreshSummary logs the outcome of a refresh batch.
func (fl *FetchLogger) LogRefreshSummary(requested, fetched, merged, failed int, duration time.Duration) {
	fl.WithFields(logrus.Fields{
		"requested":   requested,
		"fetched":     fetched,
		"merged":      merged,
		"failed":      failed,
		"duration_ms": duration.Milliseconds(),
	}).Info("Cache refresh completed")
}
