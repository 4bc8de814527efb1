package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorWith(values map[Name]float64) Vector {
	v := newVector("R1", "H1")
	for n, x := range values {
		v.set(n, x)
	}
	return *v
}

func TestScoreSkipsMissing(t *testing.T) {
	w := Weights{TimeIndex: 1, SirePlaceRate: 3}

	full := vectorWith(map[Name]float64{TimeIndex: 60, SirePlaceRate: 0.4})
	s, ok := Score(full, w)
	require.True(t, ok)
	assert.InDelta(t, (60+3*0.4)/4, s, 1e-9)

	partial := vectorWith(map[Name]float64{TimeIndex: 60})
	s, ok = Score(partial, w)
	require.True(t, ok)
	assert.InDelta(t, 60.0, s, 1e-9)

	_, ok = Score(vectorWith(nil), w)
	assert.False(t, ok)
}

func TestScoreZeroIsPresent(t *testing.T) {
	w := Weights{SirePlaceRate: 1, JockeyPlaceRate: 1}
	s, ok := Score(vectorWith(map[Name]float64{SirePlaceRate: 0, JockeyPlaceRate: 0.5}), w)
	require.True(t, ok)
	assert.InDelta(t, 0.25, s, 1e-9)
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights(map[string]float64{"time_index": 2, "last1_rank": -1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, w[TimeIndex])

	_, err = ParseWeights(map[string]float64{"speed_figure": 1})
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestSchemaIsUnique(t *testing.T) {
	seen := map[Name]bool{}
	for _, n := range Schema {
		assert.False(t, seen[n], n)
		seen[n] = true
	}
	assert.Len(t, Schema, 23)
}
