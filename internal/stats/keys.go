package stats

import (
	"fmt"

	"github.com/yourusername/race-edge/internal/models"
)

// Family names a statistic family
type Family string

const (
	FamilyCourse    Family = "course_time"
	FamilyPedigree  Family = "pedigree"
	FamilyJockey    Family = "jockey"
	FamilyGate      Family = "gate"
	FamilyReference Family = "reference_time"
)

// CourseKey identifies a course-time group
type CourseKey struct {
	Track    string
	Surface  models.Surface
	Distance int
}

func (k CourseKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Track, k.Surface, k.Distance)
}

// PedigreeRole says whether a pedigree key is about the sire or the damsire
type PedigreeRole string

const (
	RoleSire    PedigreeRole = "sire"
	RoleDamsire PedigreeRole = "damsire"
)

// PedigreeKey identifies a sire or damsire group
type PedigreeKey struct {
	Role    PedigreeRole
	Name    string
	Surface models.Surface
	Bucket  DistanceBucket
}

// JockeyKey identifies a jockey group
type JockeyKey struct {
	Jockey   string
	Track    string
	Surface  models.Surface
	Distance int
}

// GateKey identifies a starting-gate group
type GateKey struct {
	Track    string
	Surface  models.Surface
	Distance int
	Gate     int
}

// ReferenceKey identifies a class reference-time group
type ReferenceKey struct {
	Class    ClassLevel
	Track    string
	Surface  models.Surface
	Distance int
}

// TimeStat summarises condition-corrected times of a group.
// StdDev is nil when the group is too small to estimate it.
type TimeStat struct {
	Samples int
	Mean    float64
	StdDev  *float64
}

// RateStat is a placement rate over a group
type RateStat struct {
	Samples   int
	Places    int
	PlaceRate float64
}
