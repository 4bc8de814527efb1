package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"

	"github.com/yourusername/race-edge/internal/features"
)

// Logit is one logistic output: sigmoid(intercept + w·x)
type Logit struct {
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
}

func (l Logit) apply(x []float64) float64 {
	return 1 / (1 + math.Exp(-(l.Intercept + floats.Dot(l.Weights, x))))
}

// LinearModel is a logistic model read from a JSON model file
type LinearModel struct {
	Model
	Win  Logit  `json:"win"`
	Top3 *Logit `json:"top3,omitempty"`
}

// LoadLinearModel reads and validates a model file
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the weights line up with the feature list
func (m *LinearModel) Validate() error {
	if err := m.Model.Validate(); err != nil {
		return err
	}
	if len(m.Win.Weights) != len(m.Features) {
		return fmt.Errorf("%w: %d win weights for %d features", ErrInvalidModel, len(m.Win.Weights), len(m.Features))
	}
	if m.Top3 != nil && len(m.Top3.Weights) != len(m.Features) {
		return fmt.Errorf("%w: %d top3 weights for %d features", ErrInvalidModel, len(m.Top3.Weights), len(m.Features))
	}
	return nil
}

// Predict scores a vector
func (m *LinearModel) Predict(_ context.Context, fv features.Vector) (Prediction, error) {
	x := m.Vector(fv)
	p := Prediction{Win: m.Win.apply(x)}
	if m.Top3 != nil {
		t := m.Top3.apply(x)
		p.Top3 = &t
	}
	return p, p.Validate()
}
