package strategy

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/predictor"
)

var raceDay = time.Date(2024, 5, 26, 0, 0, 0, 0, time.UTC)

func pred(number int, win float64) RankedPrediction {
	return RankedPrediction{HorseID: fmt.Sprintf("H%02d", number), HorseNumber: number, Prediction: predictor.Prediction{Win: win}}
}

func race(bankroll int64, odds map[int]float64) RaceContext {
	return RaceContext{RaceID: "R1", RaceDate: raceDay, Bankroll: decimal.NewFromInt(bankroll), WinOdds: odds}
}

func TestRankDeterministic(t *testing.T) {
	a := []RankedPrediction{pred(5, 0.2), pred(3, 0.4), pred(1, 0.2), pred(8, 0.1)}
	b := []RankedPrediction{pred(8, 0.1), pred(1, 0.2), pred(5, 0.2), pred(3, 0.4)}

	ra, rb := Rank(a), Rank(b)
	assert.Equal(t, ra, rb)
	numbers := []int{}
	for _, r := range ra {
		numbers = append(numbers, r.HorseNumber)
	}
	assert.Equal(t, []int{3, 1, 5, 8}, numbers)
	assert.Equal(t, 5, a[0].HorseNumber, "input is not reordered")
}

func TestTopPlace(t *testing.T) {
	p, err := NewTopPlace(decimal.NewFromInt(100), 0)
	require.NoError(t, err)

	bets := p.Decide(race(10000, nil), []RankedPrediction{pred(2, 0.1), pred(7, 0.5), pred(9, 0.3)})
	require.Len(t, bets, 1)
	assert.Equal(t, models.BetTypePlace, bets[0].BetType)
	assert.Equal(t, models.Combination{7}, bets[0].Combination)
	assert.True(t, bets[0].Stake.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "R1", bets[0].RaceID)
	assert.Equal(t, raceDay, bets[0].RaceDate)

	assert.Empty(t, p.Decide(race(10000, nil), nil))
}

func TestTopPlaceMinProbability(t *testing.T) {
	p, err := NewTopPlace(decimal.NewFromInt(100), 0.6)
	require.NoError(t, err)
	assert.Empty(t, p.Decide(race(0, nil), []RankedPrediction{pred(1, 0.3)}))

	top3 := 0.7
	withTop3 := pred(1, 0.3)
	withTop3.Prediction.Top3 = &top3
	assert.Len(t, p.Decide(race(0, nil), []RankedPrediction{withTop3}), 1)
}

func TestTopPlaceRejectsBadUnit(t *testing.T) {
	_, err := NewTopPlace(decimal.Zero, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestKellyWin(t *testing.T) {
	k, err := NewKellyWin(0.5, 0.05, 0)
	require.NoError(t, err)

	// p=0.5, odds 3: kelly = (2*0.5-0.5)/2 = 0.25, half kelly 0.125, capped at 0.05
	bets := k.Decide(race(100000, map[int]float64{4: 3.0}), []RankedPrediction{pred(4, 0.5), pred(6, 0.2)})
	require.Len(t, bets, 1)
	assert.Equal(t, models.BetTypeWin, bets[0].BetType)
	assert.Equal(t, models.Combination{4}, bets[0].Combination)
	assert.True(t, bets[0].Stake.Equal(decimal.NewFromInt(5000)), bets[0].Stake.String())
}

func TestKellyWinRoundsDown(t *testing.T) {
	k, err := NewKellyWin(0.5, 1, 0)
	require.NoError(t, err)

	// half kelly 0.125 of 9999 = 1249.875, floored to 1200
	bets := k.Decide(race(9999, map[int]float64{4: 3.0}), []RankedPrediction{pred(4, 0.5)})
	require.Len(t, bets, 1)
	assert.True(t, bets[0].Stake.Equal(decimal.NewFromInt(1200)), bets[0].Stake.String())
}

func TestKellyWinNoBet(t *testing.T) {
	k, err := NewKellyWin(0.5, 0.1, 0)
	require.NoError(t, err)

	tests := []struct {
		name  string
		race  RaceContext
		preds []RankedPrediction
	}{
		{"no edge", race(100000, map[int]float64{1: 1.5}), []RankedPrediction{pred(1, 0.5)}},
		{"no odds", race(100000, nil), []RankedPrediction{pred(1, 0.5)}},
		{"empty bankroll", race(0, map[int]float64{1: 3}), []RankedPrediction{pred(1, 0.5)}},
		{"stake below unit", race(500, map[int]float64{1: 3}), []RankedPrediction{pred(1, 0.5)}},
		{"no runners", race(100000, nil), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, k.Decide(tt.race, tt.preds))
		})
	}
}

func TestKellyWinValidation(t *testing.T) {
	_, err := NewKellyWin(0, 0.1, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewKellyWin(0.5, 1.5, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestApplyKellyCriterion(t *testing.T) {
	assert.InDelta(t, 0.25, ApplyKellyCriterion(0.5, 3.0, 1), 1e-9)
	assert.InDelta(t, 0.125, ApplyKellyCriterion(0.5, 3.0, 0), 1e-9, "fraction defaults to half")
	assert.Equal(t, 0.0, ApplyKellyCriterion(0.2, 3.0, 1))
	assert.Equal(t, 0.0, ApplyKellyCriterion(0.9, 1.0, 1))
}

func TestCalculateExpectedValue(t *testing.T) {
	assert.InDelta(t, 50.0, CalculateExpectedValue(0.5, 3.0, 100), 1e-9)
	assert.Equal(t, 0.0, CalculateExpectedValue(0.5, 3.0, 0))
}

func TestRoundDownToUnit(t *testing.T) {
	assert.True(t, RoundDownToUnit(decimal.NewFromInt(99)).IsZero())
	assert.True(t, RoundDownToUnit(decimal.NewFromFloat(250.5)).Equal(decimal.NewFromInt(200)))
	assert.True(t, RoundDownToUnit(decimal.NewFromInt(300)).Equal(decimal.NewFromInt(300)))
}

func TestWideTopPair(t *testing.T) {
	w, err := NewWideTopPair(decimal.NewFromInt(200))
	require.NoError(t, err)

	bets := w.Decide(race(0, nil), []RankedPrediction{pred(9, 0.4), pred(2, 0.1), pred(3, 0.3)})
	require.Len(t, bets, 1)
	assert.Equal(t, models.BetTypeWide, bets[0].BetType)
	assert.Equal(t, models.Combination{3, 9}, bets[0].Combination)
	assert.True(t, bets[0].Stake.Equal(decimal.NewFromInt(200)))

	assert.Empty(t, w.Decide(race(0, nil), []RankedPrediction{pred(1, 0.9)}))
}

func TestPoliciesArePure(t *testing.T) {
	preds := []RankedPrediction{pred(4, 0.5), pred(6, 0.3), pred(1, 0.2)}
	ctx := race(50000, map[int]float64{4: 4.0, 6: 5.0, 1: 8.0})
	for _, name := range Names {
		p, err := New(name, Params{UnitStake: decimal.NewFromInt(100), KellyFraction: 0.5, MaxFraction: 0.1})
		require.NoError(t, err)
		first := p.Decide(ctx, preds)
		second := p.Decide(ctx, preds)
		assert.Equal(t, first, second, name)
		assert.NotEmpty(t, first, name)
		assert.Equal(t, name, p.Name())
		assert.NotEmpty(t, p.Parameters())
	}
}

func TestNewUnknownPolicy(t *testing.T) {
	p, err := New("martingale", Params{})
	assert.ErrorIs(t, err, ErrUnknownPolicy)
	assert.Nil(t, p)
}
