package backtest

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yourusername/race-edge/internal/models"
)

var (
	ErrIrreconcilable  = errors.New("payout lists cannot be reconciled")
	ErrNoPayout        = errors.New("no payout record")
	ErrInvalidDecision = errors.New("invalid bet decision")
)

// Rule names the reconciliation rule that produced an aligned payout list
type Rule string

const (
	RuleAligned  Rule = "aligned"
	RuleRegroup  Rule = "regroup_flat"
	RuleUniform  Rule = "uniform_amount"
	RuleRepeated Rule = "repeated_amounts"
	RuleWide     Rule = "wide_expansion"
)

// Winning is one aligned (combination, amount) pair. Amount is per 100 staked.
type Winning struct {
	Combination models.Combination
	Amount      decimal.Decimal
}

// Reconciliation is the outcome of aligning one pool
type Reconciliation struct {
	Winnings []Winning
	// Rules lists every rule applied, in order; a clean pool yields just aligned
	Rules []Rule
}

// Adjusted reports whether the lists disagreed and needed more than
// alignment. Wide expansion alone does not count.
func (r Reconciliation) Adjusted() bool {
	for _, rule := range r.Rules {
		if rule != RuleAligned && rule != RuleWide {
			return true
		}
	}
	return false
}

// Reconcile aligns the combination and amount lists of a pool. The rules
// are tried in a fixed order and never truncate either list.
func Reconcile(betType models.BetType, p models.Payout) (Reconciliation, error) {
	arity := betType.Arity()
	if arity == 0 {
		return Reconciliation{}, fmt.Errorf("%w: %s", models.ErrInvalidBetType, betType)
	}
	if len(p.Combinations) == 0 || len(p.Amounts) == 0 {
		return Reconciliation{}, fmt.Errorf("%w: %s has %d combinations and %d amounts",
			ErrIrreconcilable, betType, len(p.Combinations), len(p.Amounts))
	}

	var rec Reconciliation
	combos := p.Combinations

	// numbers listed flat are regrouped into arity-sized combinations
	if needsRegroup(combos, arity) {
		var err error
		if combos, err = regroup(combos, arity); err != nil {
			return Reconciliation{}, fmt.Errorf("%w: %s: %v", ErrIrreconcilable, betType, err)
		}
		rec.Rules = append(rec.Rules, RuleRegroup)
	}

	amounts := p.Amounts
	switch {
	// one amount per combination
	case len(combos) == len(amounts):
		rec.Rules = append(rec.Rules, RuleAligned)
	// a single amount covers every combination
	case len(amounts) == 1:
		amounts = repeatEach(amounts, len(combos))
		rec.Rules = append(rec.Rules, RuleUniform)
	// each amount covers a consecutive run of combinations
	case len(combos)%len(amounts) == 0:
		amounts = repeatEach(amounts, len(combos)/len(amounts))
		rec.Rules = append(rec.Rules, RuleRepeated)
	// nothing fits
	default:
		return Reconciliation{}, fmt.Errorf("%w: %s has %d combinations and %d amounts",
			ErrIrreconcilable, betType, len(combos), len(amounts))
	}

	rec.Winnings = make([]Winning, 0, len(combos))
	for i, c := range combos {
		rec.Winnings = append(rec.Winnings, Winning{Combination: c, Amount: amounts[i]})
	}

	// wide pairs are listed in both orders
	if betType == models.BetTypeWide {
		rec.Winnings = expandPairs(rec.Winnings)
		rec.Rules = append(rec.Rules, RuleWide)
	}
	return rec, nil
}

func needsRegroup(combos []models.Combination, arity int) bool {
	for _, c := range combos {
		if len(c) != arity {
			return true
		}
	}
	return false
}

func regroup(combos []models.Combination, arity int) ([]models.Combination, error) {
	var flat []int
	for _, c := range combos {
		flat = append(flat, c...)
	}
	if len(flat) == 0 || len(flat)%arity != 0 {
		return nil, fmt.Errorf("%d numbers do not split into groups of %d", len(flat), arity)
	}
	out := make([]models.Combination, 0, len(flat)/arity)
	for i := 0; i < len(flat); i += arity {
		out = append(out, models.Combination(append([]int(nil), flat[i:i+arity]...)))
	}
	return out, nil
}

// repeatEach repeats every amount n times, keeping order
func repeatEach(amounts []decimal.Decimal, n int) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(amounts)*n)
	for _, a := range amounts {
		for i := 0; i < n; i++ {
			out = append(out, a)
		}
	}
	return out
}

func expandPairs(ws []Winning) []Winning {
	out := make([]Winning, 0, len(ws)*2)
	for _, w := range ws {
		out = append(out, w)
		rev := models.Combination{w.Combination[1], w.Combination[0]}
		out = append(out, Winning{Combination: rev, Amount: w.Amount})
	}
	return out
}

// Settle matches a decision against the race payout. The realized payout is
// the matched amount scaled from the 100 unit to the stake; a miss pays 0.
func Settle(d models.BetDecision, record *models.PayoutRecord) (models.SettlementResult, Reconciliation, error) {
	if len(d.Combination) != d.BetType.Arity() {
		return models.SettlementResult{}, Reconciliation{}, fmt.Errorf("%w: %s needs %d horses, got %v",
			ErrInvalidDecision, d.BetType, d.BetType.Arity(), d.Combination)
	}
	if d.Stake.IsNegative() {
		return models.SettlementResult{}, Reconciliation{}, fmt.Errorf("%w: negative stake %s", ErrInvalidDecision, d.Stake)
	}
	pool, ok := record.Pool(d.BetType)
	if !ok {
		return models.SettlementResult{}, Reconciliation{}, fmt.Errorf("%w: race %s has no %s pool", ErrNoPayout, d.RaceID, d.BetType)
	}
	rec, err := Reconcile(d.BetType, pool)
	if err != nil {
		return models.SettlementResult{}, Reconciliation{}, fmt.Errorf("race %s: %w", d.RaceID, err)
	}

	result := models.SettlementResult{Decision: d, Payout: decimal.Zero}
	for _, w := range rec.Winnings {
		if d.Combination.Equal(w.Combination, d.BetType) {
			result.Payout = w.Amount.Mul(d.Stake).Div(models.PayoutUnit)
			break
		}
	}
	result.Hit = result.Payout.IsPositive()
	return result, rec, nil
}
