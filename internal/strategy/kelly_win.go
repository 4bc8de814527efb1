package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yourusername/race-edge/internal/models"
)

// KellyWin sizes a win bet on the top-ranked runner with fractional Kelly.
// The stake is capped at MaxFraction of the bankroll and rounded down to
// the stake unit; runners without odds or without an edge get no bet.
type KellyWin struct {
	Fraction    float64
	MaxFraction float64
	MinEdge     float64
}

// NewKellyWin creates a Kelly win policy
func NewKellyWin(fraction, maxFraction, minEdge float64) (*KellyWin, error) {
	if fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("%w: kelly fraction must be in (0,1], got %v", ErrInvalidParameter, fraction)
	}
	if maxFraction <= 0 || maxFraction > 1 {
		return nil, fmt.Errorf("%w: max fraction must be in (0,1], got %v", ErrInvalidParameter, maxFraction)
	}
	return &KellyWin{Fraction: fraction, MaxFraction: maxFraction, MinEdge: minEdge}, nil
}

// Name returns the policy name
func (k *KellyWin) Name() string { return "kelly_win" }

// Decide stakes on the highest-probability runner
func (k *KellyWin) Decide(race RaceContext, preds []RankedPrediction) []models.BetDecision {
	ranked := Rank(preds)
	if len(ranked) == 0 || !race.Bankroll.IsPositive() {
		return nil
	}
	top := ranked[0]
	odds, ok := race.WinOdds[top.HorseNumber]
	if !ok || top.HorseNumber <= 0 {
		return nil
	}
	p := NormalizeProbability(top.Prediction.Win)
	if p*odds-1.0 <= k.MinEdge {
		return nil
	}

	f := ApplyKellyCriterion(p, odds, k.Fraction)
	if f > k.MaxFraction {
		f = k.MaxFraction
	}
	stake := RoundDownToUnit(race.Bankroll.Mul(decimal.NewFromFloat(f)))
	if stake.IsZero() {
		return nil
	}
	return []models.BetDecision{decision(race, k.Name(), models.BetTypeWin, stake, top.HorseNumber)}
}

// Parameters returns the policy parameters for reports
func (k *KellyWin) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"kelly_fraction": k.Fraction,
		"max_fraction":   k.MaxFraction,
		"min_edge":       k.MinEdge,
	}
}
