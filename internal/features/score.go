package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Weights maps features to their weight in the composite score
type Weights map[Name]float64

// DefaultWeights scores on speed, recent form and connections
func DefaultWeights() Weights {
	return Weights{
		TimeIndex:       1.0,
		Last1Rank:       -2.0,
		Last2Rank:       -1.0,
		SirePlaceRate:   50,
		JockeyPlaceRate: 50,
		GatePlaceRate:   20,
	}
}

// ParseWeights validates a configured weight map
func ParseWeights(raw map[string]float64) (Weights, error) {
	w := make(Weights, len(raw))
	for k, v := range raw {
		if !Known(Name(k)) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, k)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("weight for %s is not finite", k)
		}
		w[Name(k)] = v
	}
	return w, nil
}

// Score returns the weighted mean of the present weighted features. Missing
// features drop out of both sums. The second result is false when no
// weighted feature is present.
func Score(v Vector, w Weights) (float64, bool) {
	var xs, ws, mags []float64
	for _, name := range Schema {
		weight, ok := w[name]
		if !ok || weight == 0 {
			continue
		}
		x, present := v.Get(name)
		if !present {
			continue
		}
		xs = append(xs, x)
		ws = append(ws, weight)
		mags = append(mags, math.Abs(weight))
	}
	if len(xs) == 0 {
		return 0, false
	}
	return floats.Dot(ws, xs) / floats.Sum(mags), true
}
