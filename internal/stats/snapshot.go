// Package stats derives reliability-gated conditional statistics from the
// entry store. Every computation takes an explicit as-of cutoff.
package stats

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/race-edge/internal/entrystore"
	"github.com/yourusername/race-edge/internal/models"
)

// Thresholds holds the minimum sample counts per family
type Thresholds struct {
	CourseMean    int `mapstructure:"course_mean" validate:"min=1"`
	CourseStdDev  int `mapstructure:"course_std_dev" validate:"min=2"`
	CourseMaxRank int `mapstructure:"course_max_rank" validate:"min=1"`
	Pedigree      int `mapstructure:"pedigree" validate:"min=1"`
	Jockey        int `mapstructure:"jockey" validate:"min=1"`
	Gate          int `mapstructure:"gate" validate:"min=1"`
	Reference     int `mapstructure:"reference" validate:"min=1"`
	PlaceRank     int `mapstructure:"place_rank" validate:"min=1"`
	MaxGate       int `mapstructure:"max_gate" validate:"min=1"`
}

// DefaultThresholds returns the standard gating
func DefaultThresholds() Thresholds {
	return Thresholds{
		CourseMean:    1,
		CourseStdDev:  5,
		CourseMaxRank: 5,
		Pedigree:      5,
		Jockey:        5,
		Gate:          10,
		Reference:     5,
		PlaceRank:     3,
		MaxGate:       8,
	}
}

// Snapshot holds every statistic family computed from entries dated
// strictly before AsOf. It is never modified after Compute returns.
type Snapshot struct {
	AsOf       time.Time
	Thresholds Thresholds

	course    map[CourseKey]TimeStat
	pedigree  map[PedigreeKey]RateStat
	jockey    map[JockeyKey]RateStat
	gate      map[GateKey]RateStat
	reference map[ReferenceKey]TimeStat
}

// Course returns the course-time statistic for a key
func (s *Snapshot) Course(k CourseKey) (TimeStat, bool) {
	v, ok := s.course[k]
	return v, ok
}

// Pedigree returns the sire or damsire statistic for a key
func (s *Snapshot) Pedigree(k PedigreeKey) (RateStat, bool) {
	v, ok := s.pedigree[k]
	return v, ok
}

// Jockey returns the jockey statistic for a key
func (s *Snapshot) Jockey(k JockeyKey) (RateStat, bool) {
	v, ok := s.jockey[k]
	return v, ok
}

// Gate returns the starting-gate statistic for a key
func (s *Snapshot) Gate(k GateKey) (RateStat, bool) {
	v, ok := s.gate[k]
	return v, ok
}

// Reference returns the class reference time for a key
func (s *Snapshot) Reference(k ReferenceKey) (TimeStat, bool) {
	v, ok := s.reference[k]
	return v, ok
}

// Sizes reports how many groups each family materialised
func (s *Snapshot) Sizes() map[Family]int {
	return map[Family]int{
		FamilyCourse:    len(s.course),
		FamilyPedigree:  len(s.pedigree),
		FamilyJockey:    len(s.jockey),
		FamilyGate:      len(s.gate),
		FamilyReference: len(s.reference),
	}
}

// Compute builds a snapshot from entries dated strictly before asOf.
// A zero asOf uses every dated entry in the store.
func Compute(store *entrystore.Store, asOf time.Time, th Thresholds) *Snapshot {
	view := store
	if !asOf.IsZero() {
		view = store.Before(asOf)
	} else {
		view = entrystore.New(store.Filter(models.EntryRecord.HasDate))
	}

	return &Snapshot{
		AsOf:       asOf,
		Thresholds: th,
		course:     courseTimes(view, th),
		pedigree:   pedigreeRates(view, th),
		jockey:     jockeyRates(view, th),
		gate:       gateRates(view, th),
		reference:  referenceTimes(view, th),
	}
}

func courseTimes(view *entrystore.Store, th Thresholds) map[CourseKey]TimeStat {
	groups := entrystore.Group(view, func(e models.EntryRecord) (CourseKey, bool) {
		if e.Track == "" || e.Surface == "" || e.Distance <= 0 || !e.RankAtMost(th.CourseMaxRank) {
			return CourseKey{}, false
		}
		if _, ok := CorrectedTime(e); !ok {
			return CourseKey{}, false
		}
		return CourseKey{Track: e.Track, Surface: e.Surface, Distance: e.Distance}, true
	})

	out := make(map[CourseKey]TimeStat, len(groups))
	for k, rows := range groups {
		if ts, ok := timeStat(rows, th.CourseMean, th.CourseStdDev); ok {
			out[k] = ts
		}
	}
	return out
}

func referenceTimes(view *entrystore.Store, th Thresholds) map[ReferenceKey]TimeStat {
	groups := entrystore.Group(view, func(e models.EntryRecord) (ReferenceKey, bool) {
		if e.Track == "" || e.Surface == "" || e.Distance <= 0 || !e.RankAtMost(1) {
			return ReferenceKey{}, false
		}
		if _, ok := CorrectedTime(e); !ok {
			return ReferenceKey{}, false
		}
		return ReferenceKey{Class: ClassOf(e.RaceName), Track: e.Track, Surface: e.Surface, Distance: e.Distance}, true
	})

	out := make(map[ReferenceKey]TimeStat, len(groups))
	for k, rows := range groups {
		if ts, ok := timeStat(rows, th.Reference, th.CourseStdDev); ok {
			out[k] = ts
		}
	}
	return out
}

func pedigreeRates(view *entrystore.Store, th Thresholds) map[PedigreeKey]RateStat {
	key := func(role PedigreeRole, name func(models.EntryRecord) string) func(models.EntryRecord) (PedigreeKey, bool) {
		return func(e models.EntryRecord) (PedigreeKey, bool) {
			n := name(e)
			b := BucketOf(e.Distance)
			if n == "" || e.Surface == "" || b == BucketUnknown || !e.HasRank() {
				return PedigreeKey{}, false
			}
			return PedigreeKey{Role: role, Name: n, Surface: e.Surface, Bucket: b}, true
		}
	}

	out := make(map[PedigreeKey]RateStat)
	sires := entrystore.Group(view, key(RoleSire, func(e models.EntryRecord) string { return e.Sire }))
	damsires := entrystore.Group(view, key(RoleDamsire, func(e models.EntryRecord) string { return e.Damsire }))
	for _, groups := range []map[PedigreeKey][]models.EntryRecord{sires, damsires} {
		for k, rows := range groups {
			if rs, ok := rateStat(rows, th.Pedigree, th.PlaceRank); ok {
				out[k] = rs
			}
		}
	}
	return out
}

func jockeyRates(view *entrystore.Store, th Thresholds) map[JockeyKey]RateStat {
	groups := entrystore.Group(view, func(e models.EntryRecord) (JockeyKey, bool) {
		if e.Jockey == "" || e.Track == "" || e.Surface == "" || e.Distance <= 0 || !e.HasRank() {
			return JockeyKey{}, false
		}
		return JockeyKey{Jockey: e.Jockey, Track: e.Track, Surface: e.Surface, Distance: e.Distance}, true
	})

	out := make(map[JockeyKey]RateStat, len(groups))
	for k, rows := range groups {
		if rs, ok := rateStat(rows, th.Jockey, th.PlaceRank); ok {
			out[k] = rs
		}
	}
	return out
}

func gateRates(view *entrystore.Store, th Thresholds) map[GateKey]RateStat {
	groups := entrystore.Group(view, func(e models.EntryRecord) (GateKey, bool) {
		if e.Gate < 1 || e.Gate > th.MaxGate || e.Track == "" || e.Surface == "" || e.Distance <= 0 || !e.HasRank() {
			return GateKey{}, false
		}
		return GateKey{Track: e.Track, Surface: e.Surface, Distance: e.Distance, Gate: e.Gate}, true
	})

	out := make(map[GateKey]RateStat, len(groups))
	for k, rows := range groups {
		if rs, ok := rateStat(rows, th.Gate, th.PlaceRank); ok {
			out[k] = rs
		}
	}
	return out
}

func timeStat(rows []models.EntryRecord, minMean, minStd int) (TimeStat, bool) {
	times := make([]float64, 0, len(rows))
	for _, r := range rows {
		if t, ok := CorrectedTime(r); ok {
			times = append(times, t)
		}
	}
	if len(times) == 0 || len(times) < minMean {
		return TimeStat{}, false
	}
	ts := TimeStat{Samples: len(times), Mean: stat.Mean(times, nil)}
	if len(times) >= minStd && len(times) >= 2 {
		sd := stat.StdDev(times, nil)
		ts.StdDev = &sd
	}
	return ts, true
}

func rateStat(rows []models.EntryRecord, minSamples, placeRank int) (RateStat, bool) {
	if len(rows) == 0 || len(rows) < minSamples {
		return RateStat{}, false
	}
	places := 0
	for _, r := range rows {
		if r.RankAtMost(placeRank) {
			places++
		}
	}
	return RateStat{
		Samples:   len(rows),
		Places:    places,
		PlaceRate: float64(places) / float64(len(rows)),
	}, true
}
