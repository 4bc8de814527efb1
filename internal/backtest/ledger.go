package backtest

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/race-edge/internal/models"
)

// DayBucket accumulates the settlements of one race date
type DayBucket struct {
	Date   time.Time
	Stake  decimal.Decimal
	Return decimal.Decimal
	Bets   int
	Hits   int
}

// Ledger is the running aggregate of a backtest run
type Ledger struct {
	TotalStake  decimal.Decimal
	TotalReturn decimal.Decimal
	Bets        int
	Hits        int

	results []models.SettlementResult
	days    map[time.Time]*DayBucket
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{days: make(map[time.Time]*DayBucket)}
}

// OpenDay makes a date appear in the time series even without bets
func (l *Ledger) OpenDay(day time.Time) {
	l.bucket(day)
}

func (l *Ledger) bucket(day time.Time) *DayBucket {
	day = models.DateOnly(day)
	b, ok := l.days[day]
	if !ok {
		b = &DayBucket{Date: day}
		l.days[day] = b
	}
	return b
}

// Record adds settled results
func (l *Ledger) Record(results ...models.SettlementResult) {
	for _, r := range results {
		b := l.bucket(r.Decision.RaceDate)
		l.TotalStake = l.TotalStake.Add(r.Decision.Stake)
		l.TotalReturn = l.TotalReturn.Add(r.Payout)
		l.Bets++
		b.Stake = b.Stake.Add(r.Decision.Stake)
		b.Return = b.Return.Add(r.Payout)
		b.Bets++
		if r.Hit {
			l.Hits++
			b.Hits++
		}
		l.results = append(l.results, r)
	}
}

// Profit returns total return minus total stake
func (l *Ledger) Profit() decimal.Decimal {
	return l.TotalReturn.Sub(l.TotalStake)
}

// Results returns the settlements in the order they were recorded
func (l *Ledger) Results() []models.SettlementResult {
	return append([]models.SettlementResult(nil), l.results...)
}

// Days returns the per-date buckets, ascending
func (l *Ledger) Days() []DayBucket {
	out := make([]DayBucket, 0, len(l.days))
	for _, b := range l.days {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Curve builds the cumulative profit series starting from bankroll
func (l *Ledger) Curve(bankroll decimal.Decimal) EquityCurve {
	days := l.Days()
	curve := make(EquityCurve, 0, len(days))
	cumulative := decimal.Zero
	peak := decimal.Zero
	for _, d := range days {
		profit := d.Return.Sub(d.Stake)
		cumulative = cumulative.Add(profit)
		if cumulative.GreaterThan(peak) {
			peak = cumulative
		}
		curve = append(curve, EquityPoint{
			Date:             d.Date,
			Stake:            d.Stake,
			Return:           d.Return,
			Profit:           profit,
			CumulativeProfit: cumulative,
			Bankroll:         bankroll.Add(cumulative),
			Drawdown:         peak.Sub(cumulative),
			Bets:             d.Bets,
			Hits:             d.Hits,
		})
	}
	return curve
}
