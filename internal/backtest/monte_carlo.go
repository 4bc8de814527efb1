package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/race-edge/internal/models"
)

// MonteCarloConfig configures the bootstrap
type MonteCarloConfig struct {
	Iterations int
	Seed       int64
	// Percentiles to report, as fractions
	Percentiles []float64
}

// MonteCarloResult describes the bootstrapped ROI distribution
type MonteCarloResult struct {
	Iterations          int                `json:"iterations"`
	Races               int                `json:"races"`
	MeanROI             float64            `json:"mean_roi"`
	StdROI              float64            `json:"std_roi"`
	Percentiles         map[string]float64 `json:"percentiles"`
	ProbabilityOfProfit float64            `json:"probability_of_profit"`
	Distribution        []float64          `json:"distribution"`
}

// RunMonteCarlo resamples whole races with replacement and reports the ROI
// of every resample. Bets on one race stay together since they share an outcome.
func RunMonteCarlo(ctx context.Context, results []models.SettlementResult, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	if len(cfg.Percentiles) == 0 {
		cfg.Percentiles = []float64{0.05, 0.25, 0.5, 0.75, 0.95}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	races := groupByRace(results)
	if len(races) == 0 {
		return MonteCarloResult{}, fmt.Errorf("no settled bets to resample")
	}

	rng := rand.New(rand.NewSource(seed))
	distribution := make([]float64, cfg.Iterations)
	for i := 0; i < cfg.Iterations; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return MonteCarloResult{}, err
			}
		}
		stake, ret := decimal.Zero, decimal.Zero
		for j := 0; j < len(races); j++ {
			r := races[rng.Intn(len(races))]
			stake = stake.Add(r.stake)
			ret = ret.Add(r.ret)
		}
		distribution[i], _ = roi(stake, ret)
	}

	sorted := append([]float64(nil), distribution...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(distribution, nil)
	profitable := sort.Search(len(sorted), func(i int) bool { return sorted[i] > 0 })

	result := MonteCarloResult{
		Iterations:          cfg.Iterations,
		Races:               len(races),
		MeanROI:             mean,
		StdROI:              std,
		Percentiles:         make(map[string]float64, len(cfg.Percentiles)),
		ProbabilityOfProfit: float64(len(sorted)-profitable) / float64(len(sorted)),
		Distribution:        distribution,
	}
	for _, p := range cfg.Percentiles {
		result.Percentiles[formatPercent(p)] = stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	return result, nil
}

type raceTotals struct {
	stake decimal.Decimal
	ret   decimal.Decimal
}

// groupByRace sums stakes and returns per race, in first-seen order
func groupByRace(results []models.SettlementResult) []raceTotals {
	index := make(map[string]int)
	var out []raceTotals
	for _, r := range results {
		i, ok := index[r.Decision.RaceID]
		if !ok {
			i = len(out)
			index[r.Decision.RaceID] = i
			out = append(out, raceTotals{})
		}
		out[i].stake = out[i].stake.Add(r.Decision.Stake)
		out[i].ret = out[i].ret.Add(r.Payout)
	}
	return out
}

func formatPercent(level float64) string {
	return fmt.Sprintf("p%.0f", level*100)
}
