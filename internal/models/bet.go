package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetDecision is a stake placed by a betting policy on one race
type BetDecision struct {
	RaceID      string          `json:"race_id" validate:"required"`
	RaceDate    time.Time       `json:"race_date" validate:"required"`
	BetType     BetType         `json:"bet_type" validate:"required"`
	Combination Combination     `json:"combination" validate:"required,min=1"`
	Stake       decimal.Decimal `json:"stake"`
	Policy      string          `json:"policy"`
}

// SettlementResult is a decision matched against the race payout
type SettlementResult struct {
	Decision BetDecision     `json:"decision"`
	Payout   decimal.Decimal `json:"payout"`
	Hit      bool            `json:"hit"`
}

// Profit returns payout minus stake
func (s SettlementResult) Profit() decimal.Decimal {
	return s.Payout.Sub(s.Decision.Stake)
}

// ROI returns the return on the stake as a percentage
func (s SettlementResult) ROI() float64 {
	if s.Decision.Stake.IsZero() {
		return 0
	}
	return s.Profit().Div(s.Decision.Stake).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
