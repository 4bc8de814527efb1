// Package strategy turns ranked per-entry predictions into stake decisions.
// Policies are pure: the same race and predictions always give the same bets.
package strategy

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/predictor"
)

var (
	ErrUnknownPolicy    = errors.New("unknown policy")
	ErrInvalidParameter = errors.New("invalid policy parameter")
)

// Policy decides the bets for one race
type Policy interface {
	Name() string
	Decide(race RaceContext, preds []RankedPrediction) []models.BetDecision
	Parameters() map[string]interface{}
}

// RaceContext carries what a policy may know about a race before the off
type RaceContext struct {
	RaceID   string
	RaceDate time.Time
	// Bankroll is the balance available when the race is decided
	Bankroll decimal.Decimal
	// WinOdds maps horse number to decimal win odds, where known
	WinOdds map[int]float64
}

// RankedPrediction is a prediction attached to a runner in the race
type RankedPrediction struct {
	HorseID     string
	HorseNumber int
	Prediction  predictor.Prediction
}

// PlaceProbability is the top-3 probability when the model gives one,
// otherwise the win probability as a lower bound
func (r RankedPrediction) PlaceProbability() float64 {
	if r.Prediction.Top3 != nil {
		return *r.Prediction.Top3
	}
	return r.Prediction.Win
}

// Rank returns a copy sorted by win probability descending. Ties are
// broken by horse number so the order never depends on input order.
func Rank(preds []RankedPrediction) []RankedPrediction {
	out := append([]RankedPrediction(nil), preds...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Prediction.Win != out[j].Prediction.Win {
			return out[i].Prediction.Win > out[j].Prediction.Win
		}
		return out[i].HorseNumber < out[j].HorseNumber
	})
	return out
}

func decision(race RaceContext, policy string, betType models.BetType, stake decimal.Decimal, horses ...int) models.BetDecision {
	return models.BetDecision{
		RaceID:      race.RaceID,
		RaceDate:    race.RaceDate,
		BetType:     betType,
		Combination: models.Combination(horses),
		Stake:       stake,
		Policy:      policy,
	}
}
