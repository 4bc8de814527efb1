package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/yourusername/race-edge/internal/models"
)

// TopPlace stakes a fixed unit on the place bet of the top-ranked runner
type TopPlace struct {
	Unit           decimal.Decimal
	MinProbability float64
}

// NewTopPlace creates a top-place policy
func NewTopPlace(unit decimal.Decimal, minProbability float64) (*TopPlace, error) {
	if err := validateUnit(unit); err != nil {
		return nil, err
	}
	return &TopPlace{Unit: unit, MinProbability: NormalizeProbability(minProbability)}, nil
}

// Name returns the policy name
func (p *TopPlace) Name() string { return "top_place" }

// Decide bets on the first runner of the ranking, if it clears the threshold
func (p *TopPlace) Decide(race RaceContext, preds []RankedPrediction) []models.BetDecision {
	ranked := Rank(preds)
	if len(ranked) == 0 {
		return nil
	}
	top := ranked[0]
	if top.HorseNumber <= 0 || top.PlaceProbability() < p.MinProbability {
		return nil
	}
	return []models.BetDecision{decision(race, p.Name(), models.BetTypePlace, p.Unit, top.HorseNumber)}
}

// Parameters returns the policy parameters for reports
func (p *TopPlace) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"unit_stake":      p.Unit.String(),
		"min_probability": p.MinProbability,
	}
}
