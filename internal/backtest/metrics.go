package backtest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Skip reasons recorded when a race is left out of the ledger
const (
	SkipNoEntries       = "no_entries"
	SkipMalformed       = "malformed_race"
	SkipNoPayout        = "no_payout"
	SkipPredictorError  = "predictor_error"
	SkipIrreconcilable  = "irreconcilable"
	SkipInvalidDecision = "invalid_decision"
)

// Summary holds the headline figures of a run
type Summary struct {
	Races           int             `json:"races"`
	RacesSettled    int             `json:"races_settled"`
	RacesSkipped    int             `json:"races_skipped"`
	Bets            int             `json:"bets"`
	Hits            int             `json:"hits"`
	TotalStake      decimal.Decimal `json:"total_stake"`
	TotalReturn     decimal.Decimal `json:"total_return"`
	Profit          decimal.Decimal `json:"profit"`
	ROI             float64         `json:"roi"`
	PaybackRate     float64         `json:"payback_rate"`
	HitRate         float64         `json:"hit_rate"`
	MaxDrawdown     decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct  float64         `json:"max_drawdown_pct"`
	FinalBankroll   decimal.Decimal `json:"final_bankroll"`
	SkippedByReason map[string]int  `json:"skipped_by_reason"`
	Reconciled      map[string]int  `json:"reconciled"`
	Vectors         int             `json:"vectors"`
	MissingFeatures int             `json:"missing_features"`
}

// Summarize derives the summary figures from a ledger
func Summarize(l *Ledger, curve EquityCurve, bankroll decimal.Decimal) Summary {
	s := Summary{
		Bets:            l.Bets,
		Hits:            l.Hits,
		TotalStake:      l.TotalStake,
		TotalReturn:     l.TotalReturn,
		Profit:          l.Profit(),
		MaxDrawdown:     curve.MaxDrawdown(),
		MaxDrawdownPct:  curve.MaxDrawdownRatio(),
		FinalBankroll:   bankroll.Add(l.Profit()),
		SkippedByReason: map[string]int{},
		Reconciled:      map[string]int{},
	}
	s.ROI, s.PaybackRate = roi(l.TotalStake, l.TotalReturn)
	if l.Bets > 0 {
		s.HitRate = float64(l.Hits) / float64(l.Bets)
	}
	return s
}

// roi returns profit over stake and return over stake; both 0 without stake
func roi(stake, ret decimal.Decimal) (float64, float64) {
	if !stake.IsPositive() {
		return 0, 0
	}
	return ret.Sub(stake).Div(stake).InexactFloat64(), ret.Div(stake).InexactFloat64()
}

// SkipReasons returns the recorded skip reasons, sorted
func (s Summary) SkipReasons() []string {
	reasons := make([]string, 0, len(s.SkippedByReason))
	for r := range s.SkippedByReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return reasons
}

// HashParameters creates a stable hash for parameter maps
func HashParameters(params map[string]interface{}) string {
	data, _ := json.Marshal(params)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}
