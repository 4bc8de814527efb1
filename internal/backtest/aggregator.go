package backtest

import "math"

// Recommendation values
const (
	RecommendAccept = "ACCEPT"
	RecommendReject = "REJECT"
	RecommendReview = "NEEDS_REVIEW"
)

// AggregatedResult combines a full replay with its robustness checks
type AggregatedResult struct {
	Result         *Result            `json:"result"`
	MonteCarlo     *MonteCarloResult  `json:"monte_carlo,omitempty"`
	WalkForward    *WalkForwardResult `json:"walk_forward,omitempty"`
	CompositeScore float64            `json:"composite_score"`
	Recommendation string             `json:"recommendation"`
}

// AggregateResults scores a run. The bootstrap and walk-forward parts are
// optional and simply drop out of the score when absent.
func AggregateResults(res *Result, mc *MonteCarloResult, wf *WalkForwardResult) AggregatedResult {
	agg := AggregatedResult{Result: res, MonteCarlo: mc, WalkForward: wf}
	if res == nil {
		agg.Recommendation = RecommendReject
		return agg
	}

	score, weight := 0.0, 0.0
	add := func(v, w float64) {
		score += v * w
		weight += w
	}
	s := res.Summary
	add(normalize(s.ROI, -0.5, 0.5), 0.4)
	add(1.0-normalize(s.MaxDrawdownPct, 0, 0.5), 0.2)
	if mc != nil {
		add(mc.ProbabilityOfProfit, 0.2)
	}
	if wf != nil && len(wf.Windows) > 0 {
		add(wf.ConsistencyScore, 0.2)
	}
	agg.CompositeScore = score / weight

	consistency := 1.0
	if wf != nil && len(wf.Windows) > 0 {
		consistency = wf.ConsistencyScore
	}
	agg.Recommendation = GenerateRecommendation(agg.CompositeScore, consistency, s.ROI, s.Bets)
	return agg
}

// GenerateRecommendation determines if a policy is worth keeping
func GenerateRecommendation(score, consistency, roi float64, bets int) string {
	if bets == 0 || roi < 0 || score < 0.4 || consistency < 0.4 {
		return RecommendReject
	}
	if score > 0.7 && consistency > 0.6 {
		return RecommendAccept
	}
	return RecommendReview
}

func normalize(value, min, max float64) float64 {
	if max-min == 0 {
		return 0
	}
	v := (value - min) / (max - min)
	return math.Max(0, math.Min(1, v))
}
