package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// EquityPoint is one race date of the cumulative profit series
type EquityPoint struct {
	Date             time.Time       `json:"date"`
	Stake            decimal.Decimal `json:"stake"`
	Return           decimal.Decimal `json:"return"`
	Profit           decimal.Decimal `json:"profit"`
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
	Bankroll         decimal.Decimal `json:"bankroll"`
	// Drawdown is the distance below the best cumulative profit so far
	Drawdown decimal.Decimal `json:"drawdown"`
	Bets     int             `json:"bets"`
	Hits     int             `json:"hits"`
}

// EquityCurve represents a time-series of equity points
type EquityCurve []EquityPoint

// MaxDrawdown returns the largest peak-to-trough fall of cumulative profit
func (e EquityCurve) MaxDrawdown() decimal.Decimal {
	max := decimal.Zero
	for _, p := range e {
		if p.Drawdown.GreaterThan(max) {
			max = p.Drawdown
		}
	}
	return max
}

// MaxDrawdownRatio returns the largest fall relative to the bankroll at its peak
func (e EquityCurve) MaxDrawdownRatio() float64 {
	maxRatio := 0.0
	var peak decimal.Decimal
	for i, p := range e {
		if i == 0 {
			peak = p.Bankroll.Sub(p.Profit)
		}
		if p.Bankroll.GreaterThan(peak) {
			peak = p.Bankroll
		}
		if !peak.IsPositive() {
			continue
		}
		if r := peak.Sub(p.Bankroll).Div(peak).InexactFloat64(); r > maxRatio {
			maxRatio = r
		}
	}
	return maxRatio
}

// WriteCSV writes the curve as CSV with a header row
func (e EquityCurve) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"date", "bets", "hits", "stake", "return", "profit", "cumulative_profit", "bankroll", "drawdown"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range e {
		record := []string{
			p.Date.Format("2006-01-02"),
			strconv.Itoa(p.Bets),
			strconv.Itoa(p.Hits),
			p.Stake.StringFixed(2),
			p.Return.StringFixed(2),
			p.Profit.StringFixed(2),
			p.CumulativeProfit.StringFixed(2),
			p.Bankroll.StringFixed(2),
			p.Drawdown.StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
