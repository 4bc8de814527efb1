package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLevelAndFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New("debug", "production", buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = New("nonsense", "development", buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestBacktestLoggerRaceSkipped(t *testing.T) {
	log, buf := setupTestLogger()
	btLogger := NewBacktestLogger(log).WithRun("run_1", "top_place")

	btLogger.LogRaceSkipped("R1", time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC), "no_payout", errors.New("missing"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "backtest", logEntry["component"])
	assert.Equal(t, "run_1", logEntry["run_id"])
	assert.Equal(t, "2024-05-05", logEntry["race_date"])
	assert.Equal(t, "no_payout", logEntry["reason"])
	assert.Equal(t, "missing", logEntry["error"])
	assert.Equal(t, "warning", logEntry["level"])
}

func TestBacktestLoggerRunSummary(t *testing.T) {
	log, buf := setupTestLogger()
	btLogger := NewBacktestLogger(log)

	btLogger.LogRunSummary(10, 2, 8, 3, 800, 920, 15, 2*time.Second)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, float64(8), logEntry["bets"])
	assert.Equal(t, float64(2000), logEntry["duration_ms"])
}

func TestBacktestLoggerReconciliation(t *testing.T) {
	log, buf := setupTestLogger()
	NewBacktestLogger(log).LogReconciliation("R1", "wide", "wide_expand", 3, 3)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "wide_expand", logEntry["rule"])
}

func TestFetchLoggerFailure(t *testing.T) {
	log, buf := setupTestLogger()
	fetchLogger := NewFetchLogger(log)

	fetchLogger.LogFetchFailure("2019104308", 3, false, errors.New("timeout"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "fetch", logEntry["component"])
	assert.Equal(t, "2019104308", logEntry["horse_id"])
	assert.Equal(t, false, logEntry["permanent"])
}

func TestFetchLoggerRefreshSummary(t *testing.T) {
	log, buf := setupTestLogger()
	NewFetchLogger(log).LogRefreshSummary(5, 4, 4, 1, 1500*time.Millisecond)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, float64(4), logEntry["merged"])
	assert.Equal(t, float64(1500), logEntry["duration_ms"])
}
