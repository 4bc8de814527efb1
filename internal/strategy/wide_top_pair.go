package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/yourusername/race-edge/internal/models"
)

// WideTopPair stakes a fixed unit on the wide pair of the two top-ranked runners
type WideTopPair struct {
	Unit decimal.Decimal
}

// NewWideTopPair creates a wide top-pair policy
func NewWideTopPair(unit decimal.Decimal) (*WideTopPair, error) {
	if err := validateUnit(unit); err != nil {
		return nil, err
	}
	return &WideTopPair{Unit: unit}, nil
}

// Name returns the policy name
func (w *WideTopPair) Name() string { return "wide_top_pair" }

// Decide bets on the top two runners; races with fewer than two get nothing
func (w *WideTopPair) Decide(race RaceContext, preds []RankedPrediction) []models.BetDecision {
	ranked := Rank(preds)
	if len(ranked) < 2 || ranked[0].HorseNumber <= 0 || ranked[1].HorseNumber <= 0 {
		return nil
	}
	a, b := ranked[0].HorseNumber, ranked[1].HorseNumber
	if a > b {
		a, b = b, a
	}
	return []models.BetDecision{decision(race, w.Name(), models.BetTypeWide, w.Unit, a, b)}
}

// Parameters returns the policy parameters for reports
func (w *WideTopPair) Parameters() map[string]interface{} {
	return map[string]interface{}{"unit_stake": w.Unit.String()}
}
