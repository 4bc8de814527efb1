package backtest

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/race-edge/internal/metrics"
)

// WalkForwardConfig configures consecutive out-of-sample test windows.
// Statistics are always rebuilt from everything before each race date, so
// every window is scored only on what preceded it.
type WalkForwardConfig struct {
	TestWindowDays   int
	StepSizeDays     int
	MinBetsPerWindow int
}

// WalkForwardWindow represents one walk-forward window
type WalkForwardWindow struct {
	WindowID  int       `json:"window_id"`
	TestStart time.Time `json:"test_start"`
	TestEnd   time.Time `json:"test_end"`
	Summary   Summary   `json:"summary"`
}

// WalkForwardResult represents walk-forward result
type WalkForwardResult struct {
	Windows          []WalkForwardWindow `json:"windows"`
	MeanROI          float64             `json:"mean_roi"`
	StdROI           float64             `json:"std_roi"`
	ConsistencyScore float64             `json:"consistency_score"`
}

// RunWalkForward runs the engine over consecutive windows of the configured range
func RunWalkForward(ctx context.Context, engine *Engine, cfg WalkForwardConfig) (WalkForwardResult, error) {
	if engine == nil {
		return WalkForwardResult{}, fmt.Errorf("engine is required")
	}
	if cfg.TestWindowDays <= 0 {
		return WalkForwardResult{}, fmt.Errorf("%w: test window must be positive", ErrInvalidConfig)
	}
	if cfg.StepSizeDays <= 0 {
		cfg.StepSizeDays = cfg.TestWindowDays
	}

	dates := engine.store.RaceDates(engine.config.Start, engine.config.End)
	if len(dates) == 0 {
		return WalkForwardResult{}, nil
	}
	start, end := dates[0], dates[len(dates)-1]

	windows := []WalkForwardWindow{}
	windowID := 0
	for current := start; !current.After(end); current = current.AddDate(0, 0, cfg.StepSizeDays) {
		testEnd := current.AddDate(0, 0, cfg.TestWindowDays-1)
		if testEnd.After(end) {
			testEnd = end
		}
		windowID++
		res, err := engine.RunWindow(ctx, current, testEnd)
		if err != nil {
			metrics.RecordBacktestRun("walk_forward", "failure")
			return WalkForwardResult{}, fmt.Errorf("window %d: %w", windowID, err)
		}
		if res.Summary.Bets < cfg.MinBetsPerWindow {
			continue
		}
		windows = append(windows, WalkForwardWindow{
			WindowID:  windowID,
			TestStart: current,
			TestEnd:   testEnd,
			Summary:   res.Summary,
		})
	}
	metrics.RecordBacktestRun("walk_forward", "success")

	result := WalkForwardResult{Windows: windows, ConsistencyScore: CalculateConsistency(windows)}
	if len(windows) > 0 {
		rois := make([]float64, len(windows))
		for i, w := range windows {
			rois[i] = w.Summary.ROI
		}
		result.MeanROI = stat.Mean(rois, nil)
		if len(rois) > 1 {
			result.StdROI = stat.StdDev(rois, nil)
		}
	}
	return result, nil
}

// CalculateConsistency calculates the share of profitable windows
func CalculateConsistency(windows []WalkForwardWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	profitable := 0
	for _, w := range windows {
		if w.Summary.Profit.IsPositive() {
			profitable++
		}
	}
	return float64(profitable) / float64(len(windows))
}
