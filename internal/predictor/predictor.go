// Package predictor adapts trained win-probability models to feature vectors.
package predictor

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/race-edge/internal/features"
)

var (
	ErrInvalidPrediction = errors.New("invalid prediction")
	ErrInvalidModel      = errors.New("invalid model")
	ErrConnectionFailed  = errors.New("predictor connection failed")
)

// Prediction holds outcome probabilities for one entry. Top3 is nil when
// the model does not estimate it.
type Prediction struct {
	Win  float64  `json:"win"`
	Top3 *float64 `json:"top3,omitempty"`
}

// Validate checks the probabilities lie in [0,1]
func (p Prediction) Validate() error {
	if p.Win < 0 || p.Win > 1 || p.Win != p.Win {
		return fmt.Errorf("%w: win probability %v", ErrInvalidPrediction, p.Win)
	}
	if p.Top3 != nil && (*p.Top3 < 0 || *p.Top3 > 1 || *p.Top3 != *p.Top3) {
		return fmt.Errorf("%w: top3 probability %v", ErrInvalidPrediction, *p.Top3)
	}
	return nil
}

// Predictor scores one feature vector
type Predictor interface {
	Predict(ctx context.Context, fv features.Vector) (Prediction, error)
}

// Model describes the inputs a trained model expects
type Model struct {
	Version    string             `json:"version"`
	Features   []string           `json:"features"`
	Imputation map[string]float64 `json:"imputation"`
}

// Validate checks every feature the model wants exists in the schema
func (m Model) Validate() error {
	if len(m.Features) == 0 {
		return fmt.Errorf("%w: no features", ErrInvalidModel)
	}
	for _, f := range m.Features {
		if !features.Known(features.Name(f)) {
			return fmt.Errorf("%w: %w: %s", ErrInvalidModel, features.ErrUnknownFeature, f)
		}
	}
	return nil
}

// Vector maps a feature vector onto the model's input order. Features the
// model does not list are ignored; missing ones take the imputation value,
// or zero if none was supplied.
func (m Model) Vector(fv features.Vector) []float64 {
	x := make([]float64, len(m.Features))
	for i, name := range m.Features {
		if v, ok := fv.Get(features.Name(name)); ok {
			x[i] = v
			continue
		}
		x[i] = m.Imputation[name]
	}
	return x
}
