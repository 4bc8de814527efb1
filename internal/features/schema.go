// Package features composes per-entry feature vectors from a horse's prior
// form and a point-in-time statistics snapshot.
package features

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion identifies the feature layout below
const SchemaVersion = "v1"

// Name is a feature name in the schema
type Name string

const (
	Last1Rank          Name = "last1_rank"
	Last2Rank          Name = "last2_rank"
	Last3Rank          Name = "last3_rank"
	Last1Margin        Name = "last1_margin"
	Last2Margin        Name = "last2_margin"
	Last3Margin        Name = "last3_margin"
	Last1Closing       Name = "last1_closing"
	Last2Closing       Name = "last2_closing"
	Last3Closing       Name = "last3_closing"
	TimeIndex          Name = "time_index"
	ReferenceGap       Name = "reference_gap"
	SirePlaceRate      Name = "sire_place_rate"
	SireSamples        Name = "sire_samples"
	DamsirePlaceRate   Name = "damsire_place_rate"
	DamsireSamples     Name = "damsire_samples"
	JockeyPlaceRate    Name = "jockey_place_rate"
	JockeySamples      Name = "jockey_samples"
	GatePlaceRate      Name = "gate_place_rate"
	GateSamples        Name = "gate_samples"
	WeightCarriedDelta Name = "weight_carried_delta"
	BodyWeightDelta    Name = "body_weight_delta"
	RestDays           Name = "rest_days"
	ClassLevel         Name = "class_level"
)

// Schema lists every feature in vector order
var Schema = []Name{
	Last1Rank, Last2Rank, Last3Rank,
	Last1Margin, Last2Margin, Last3Margin,
	Last1Closing, Last2Closing, Last3Closing,
	TimeIndex, ReferenceGap,
	SirePlaceRate, SireSamples,
	DamsirePlaceRate, DamsireSamples,
	JockeyPlaceRate, JockeySamples,
	GatePlaceRate, GateSamples,
	WeightCarriedDelta, BodyWeightDelta,
	RestDays, ClassLevel,
}

var schemaIndex = func() map[Name]int {
	idx := make(map[Name]int, len(Schema))
	for i, n := range Schema {
		idx[n] = i
	}
	return idx
}()

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrLookahead      = errors.New("statistics snapshot is not before the race date")
)

// Known reports whether name is part of the schema
func Known(name Name) bool {
	_, ok := schemaIndex[name]
	return ok
}

type value struct {
	v       float64
	present bool
}

// Vector is one entry's features for one race. Absent features are missing,
// which is distinct from a present zero.
type Vector struct {
	RaceID  string
	HorseID string
	values  []value
}

func newVector(raceID, horseID string) *Vector {
	return &Vector{RaceID: raceID, HorseID: horseID, values: make([]value, len(Schema))}
}

func (v *Vector) set(name Name, x float64) {
	i, ok := schemaIndex[name]
	if !ok {
		panic(fmt.Sprintf("features: set of unknown feature %q", name))
	}
	v.values[i] = value{v: x, present: true}
}

func (v *Vector) setPtr(name Name, x *float64) {
	if x != nil {
		v.set(name, *x)
	}
}

// Get returns a feature value and whether it is present
func (v Vector) Get(name Name) (float64, bool) {
	i, ok := schemaIndex[name]
	if !ok || i >= len(v.values) {
		return 0, false
	}
	return v.values[i].v, v.values[i].present
}

// MissingCount returns how many schema features are missing
func (v Vector) MissingCount() int {
	n := 0
	for i := range Schema {
		if i >= len(v.values) || !v.values[i].present {
			n++
		}
	}
	return n
}

// Values returns the vector as a name to value map, nil for missing
func (v Vector) Values() map[Name]*float64 {
	out := make(map[Name]*float64, len(Schema))
	for _, n := range Schema {
		if x, ok := v.Get(n); ok {
			x := x
			out[n] = &x
		} else {
			out[n] = nil
		}
	}
	return out
}

// MarshalJSON writes the schema version and every feature, null when missing
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Schema   string            `json:"schema"`
		RaceID   string            `json:"race_id"`
		HorseID  string            `json:"horse_id"`
		Features map[Name]*float64 `json:"features"`
	}{SchemaVersion, v.RaceID, v.HorseID, v.Values()})
}
