package strategy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// StakeUnit is the smallest stake the pools accept
var StakeUnit = decimal.NewFromInt(100)

// ApplyKellyCriterion returns the fraction of bankroll the Kelly criterion
// assigns to a win bet, scaled by fraction. Zero when there is no edge.
func ApplyKellyCriterion(probability, odds, fraction float64) float64 {
	probability = NormalizeProbability(probability)
	if probability <= 0 || odds <= 1 {
		return 0
	}
	p := probability
	q := 1.0 - p
	b := odds - 1.0
	kelly := (b*p - q) / b
	if kelly <= 0 {
		return 0
	}
	if fraction <= 0 {
		fraction = 0.5
	}
	return kelly * fraction
}

// CalculateExpectedValue returns the expected profit of a stake at decimal odds
func CalculateExpectedValue(probability, odds, stake float64) float64 {
	if probability <= 0 || odds <= 1 || stake <= 0 {
		return 0
	}
	return probability*(odds-1.0)*stake - (1.0-probability)*stake
}

// NormalizeProbability clamps p into [0,1]; NaN and infinities become 0
func NormalizeProbability(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// RoundDownToUnit floors a stake to a whole number of stake units
func RoundDownToUnit(stake decimal.Decimal) decimal.Decimal {
	if stake.LessThan(StakeUnit) {
		return decimal.Zero
	}
	return stake.Div(StakeUnit).Floor().Mul(StakeUnit)
}

func validateUnit(unit decimal.Decimal) error {
	if !unit.IsPositive() {
		return fmt.Errorf("%w: unit stake must be positive, got %s", ErrInvalidParameter, unit)
	}
	return nil
}
