package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GenerateConsoleReport formats a run for terminal output
func GenerateConsoleReport(res *Result) string {
	s := res.Summary
	var b strings.Builder
	b.WriteString("Backtest Report\n")
	b.WriteString("================\n")
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Policy: %s\n", res.Policy)
	if !res.Start.IsZero() || !res.End.IsZero() {
		fmt.Fprintf(&b, "Window: %s .. %s\n", formatDay(res.Start), formatDay(res.End))
	}
	fmt.Fprintf(&b, "Races: %d settled, %d skipped\n", s.RacesSettled, s.RacesSkipped)
	for _, reason := range s.SkipReasons() {
		fmt.Fprintf(&b, "  %s: %d\n", reason, s.SkippedByReason[reason])
	}
	fmt.Fprintf(&b, "Bets: %d  Hits: %d  Hit Rate: %.2f%%\n", s.Bets, s.Hits, s.HitRate*100)
	fmt.Fprintf(&b, "Total Stake: %s\n", s.TotalStake.StringFixed(0))
	fmt.Fprintf(&b, "Total Return: %s\n", s.TotalReturn.StringFixed(0))
	fmt.Fprintf(&b, "Profit: %s\n", s.Profit.StringFixed(0))
	fmt.Fprintf(&b, "ROI: %.2f%%  Payback: %.2f%%\n", s.ROI*100, s.PaybackRate*100)
	fmt.Fprintf(&b, "Max Drawdown: %s (%.2f%%)\n", s.MaxDrawdown.StringFixed(0), s.MaxDrawdownPct*100)
	if s.Vectors > 0 {
		fmt.Fprintf(&b, "Missing Features: %d over %d vectors\n", s.MissingFeatures, s.Vectors)
	}
	return b.String()
}

// GenerateAggregateReport adds the robustness checks to the console report
func GenerateAggregateReport(agg AggregatedResult) string {
	var b strings.Builder
	if agg.Result != nil {
		b.WriteString(GenerateConsoleReport(agg.Result))
	}
	if mc := agg.MonteCarlo; mc != nil {
		fmt.Fprintf(&b, "Bootstrap: %d resamples over %d races, mean ROI %.2f%%, P(profit) %.2f\n",
			mc.Iterations, mc.Races, mc.MeanROI*100, mc.ProbabilityOfProfit)
	}
	if wf := agg.WalkForward; wf != nil {
		fmt.Fprintf(&b, "Walk-forward: %d windows, mean ROI %.2f%%, consistency %.2f\n",
			len(wf.Windows), wf.MeanROI*100, wf.ConsistencyScore)
	}
	fmt.Fprintf(&b, "Composite Score: %.2f\n", agg.CompositeScore)
	fmt.Fprintf(&b, "Recommendation: %s\n", agg.Recommendation)
	return b.String()
}

// GenerateCSVExport writes the cumulative profit series of a run
func GenerateCSVExport(res *Result, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()
	if err := res.Curve.WriteCSV(f); err != nil {
		return err
	}
	return f.Close()
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("2006-01-02")
}
