package backtest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-edge/internal/models"
)

func settled(raceID string, day time.Time, stake, payout int64) models.SettlementResult {
	return models.SettlementResult{
		Decision: models.BetDecision{RaceID: raceID, RaceDate: day, BetType: models.BetTypePlace, Combination: models.Combination{1}, Stake: dec(stake)},
		Payout:   dec(payout),
		Hit:      payout > 0,
	}
}

func TestLedgerCurve(t *testing.T) {
	d1 := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	d2, d3, d4 := d1.AddDate(0, 0, 1), d1.AddDate(0, 0, 7), d1.AddDate(0, 0, 8)

	l := NewLedger()
	l.Record(settled("R1", d1, 100, 0))
	l.Record(settled("R2", d2, 100, 400))
	l.OpenDay(d3)
	l.Record(settled("R3", d4, 100, 0), settled("R3", d4, 100, 0))

	assert.Equal(t, 4, l.Bets)
	assert.Equal(t, 1, l.Hits)
	assert.True(t, l.TotalStake.Equal(dec(400)))
	assert.True(t, l.TotalReturn.Equal(dec(400)))
	assert.True(t, l.Profit().IsZero())

	curve := l.Curve(dec(1000))
	require.Len(t, curve, 4)
	cumulative := []int64{-100, 200, 200, 0}
	for i, want := range cumulative {
		assert.True(t, curve[i].CumulativeProfit.Equal(dec(want)), "day %d: %s", i, curve[i].CumulativeProfit)
	}
	assert.Equal(t, 0, curve[2].Bets)
	assert.True(t, curve[3].Bankroll.Equal(dec(1000)))
	assert.True(t, curve.MaxDrawdown().Equal(dec(200)))
	assert.InDelta(t, 200.0/1200.0, curve.MaxDrawdownRatio(), 1e-9)
}

func TestLedgerConservation(t *testing.T) {
	day := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	results := []models.SettlementResult{
		settled("R1", day, 100, 150),
		settled("R2", day, 200, 0),
		settled("R3", day.AddDate(0, 0, 1), 300, 900),
	}
	l := NewLedger()
	l.Record(results...)

	stake, ret, hits := dec(0), dec(0), 0
	for _, r := range results {
		stake = stake.Add(r.Decision.Stake)
		ret = ret.Add(r.Payout)
		if r.Payout.IsPositive() {
			hits++
		}
	}
	assert.True(t, l.TotalStake.Equal(stake))
	assert.True(t, l.TotalReturn.Equal(ret))
	assert.Equal(t, hits, l.Hits)
	assert.Equal(t, results, l.Results())

	var dayStake = dec(0)
	for _, b := range l.Days() {
		dayStake = dayStake.Add(b.Stake)
	}
	assert.True(t, dayStake.Equal(stake), "day buckets add up to the total")
}

func TestEquityCurveCSV(t *testing.T) {
	l := NewLedger()
	l.Record(settled("R1", time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), 100, 250))

	var buf bytes.Buffer
	require.NoError(t, l.Curve(dec(1000)).WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,bets,hits,stake,return,profit,cumulative_profit,bankroll,drawdown", lines[0])
	assert.Equal(t, "2024-01-06,1,1,100.00,250.00,150.00,150.00,1150.00,0.00", lines[1])
}

func TestSummarize(t *testing.T) {
	day := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	l := NewLedger()
	l.Record(settled("R1", day, 100, 300), settled("R2", day, 100, 0))

	s := Summarize(l, l.Curve(dec(1000)), dec(1000))
	assert.Equal(t, 2, s.Bets)
	assert.Equal(t, 1, s.Hits)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
	assert.InDelta(t, 0.5, s.ROI, 1e-9)
	assert.InDelta(t, 1.5, s.PaybackRate, 1e-9)
	assert.True(t, s.FinalBankroll.Equal(dec(1100)))

	empty := Summarize(NewLedger(), nil, dec(1000))
	assert.Equal(t, 0.0, empty.ROI)
	assert.Equal(t, 0.0, empty.HitRate)
}
