package features

import (
	"fmt"
	"math"
	"time"

	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/stats"
)

// Conditions describes the race an entry is being scored for
type Conditions struct {
	RaceID    string
	Date      time.Time
	Track     string
	Surface   models.Surface
	Distance  int
	Condition models.TrackCondition
	RaceName  string
}

// ConditionsOf reads the race conditions from one of the race's entries
func ConditionsOf(e models.EntryRecord) Conditions {
	return Conditions{
		RaceID:    e.RaceID,
		Date:      e.Date,
		Track:     e.Track,
		Surface:   e.Surface,
		Distance:  e.Distance,
		Condition: e.Condition,
		RaceName:  e.RaceName,
	}
}

// ProfileSource returns horse histories cut off before a date
type ProfileSource interface {
	ProfileAsOf(horseID string, asOf time.Time) (models.HorseProfile, bool)
}

// Composer builds feature vectors against one statistics snapshot
type Composer struct {
	snapshot *stats.Snapshot
	profiles ProfileSource
}

// NewComposer creates a composer
func NewComposer(snapshot *stats.Snapshot, profiles ProfileSource) *Composer {
	return &Composer{snapshot: snapshot, profiles: profiles}
}

// Compose builds the vector for entry running under cond. Only pre-race
// fields of entry are read. The snapshot must not be dated after the race.
func (c *Composer) Compose(entry models.EntryRecord, cond Conditions) (Vector, error) {
	if cond.Date.IsZero() {
		return Vector{}, models.ErrMissingRaceDate
	}
	if c.snapshot == nil || c.snapshot.AsOf.IsZero() || c.snapshot.AsOf.After(cond.Date) {
		return Vector{}, fmt.Errorf("%w: race %s on %s", ErrLookahead, cond.RaceID, cond.Date.Format("2006-01-02"))
	}

	v := newVector(cond.RaceID, entry.HorseID)
	profile, _ := c.profiles.ProfileAsOf(entry.HorseID, cond.Date)
	past := priorRuns(profile.Performances, cond.Date)

	c.recentForm(v, past)
	c.speed(v, past, cond)
	c.connections(v, entry, profile.Pedigree, cond)

	if len(past) > 0 {
		last := past[0]
		if entry.WeightCarried != nil && last.WeightCarried != nil {
			v.set(WeightCarriedDelta, *entry.WeightCarried-*last.WeightCarried)
		}
		if entry.BodyWeight != nil && last.BodyWeight != nil {
			v.set(BodyWeightDelta, *entry.BodyWeight-*last.BodyWeight)
		}
		v.set(RestDays, math.Floor(cond.Date.Sub(last.Date).Hours()/24))
	}
	v.set(ClassLevel, float64(stats.ClassOf(cond.RaceName)))

	return *v, nil
}

// priorRuns keeps runs strictly before the race, newest first
func priorRuns(perfs []models.EntryRecord, raceDate time.Time) []models.EntryRecord {
	out := make([]models.EntryRecord, 0, len(perfs))
	for _, p := range perfs {
		if p.HasDate() && p.Date.Before(raceDate) {
			out = append(out, p)
		}
	}
	models.SortPerformances(out)
	return out
}

var (
	rankNames    = []Name{Last1Rank, Last2Rank, Last3Rank}
	marginNames  = []Name{Last1Margin, Last2Margin, Last3Margin}
	closingNames = []Name{Last1Closing, Last2Closing, Last3Closing}
)

func (c *Composer) recentForm(v *Vector, past []models.EntryRecord) {
	for i := 0; i < 3 && i < len(past); i++ {
		if past[i].HasRank() {
			v.set(rankNames[i], float64(*past[i].Rank))
		}
		v.setPtr(marginNames[i], past[i].Margin)
		v.setPtr(closingNames[i], past[i].ClosingTime)
	}
}

func (c *Composer) speed(v *Vector, past []models.EntryRecord, cond Conditions) {
	best, ok := bestCorrectedTime(past, cond)
	if !ok {
		return
	}

	course, ok := c.snapshot.Course(stats.CourseKey{Track: cond.Track, Surface: cond.Surface, Distance: cond.Distance})
	if ok && course.StdDev != nil && *course.StdDev > 0 {
		v.set(TimeIndex, TimeIndexOf(course.Mean, *course.StdDev, best))
	}

	ref, ok := c.snapshot.Reference(stats.ReferenceKey{
		Class:    stats.ClassOf(cond.RaceName),
		Track:    cond.Track,
		Surface:  cond.Surface,
		Distance: cond.Distance,
	})
	if ok {
		v.set(ReferenceGap, best-ref.Mean)
	}
}

// TimeIndexOf standardises a time against a course distribution: 50 is
// average and every standard deviation faster adds 10
func TimeIndexOf(mean, stdDev, best float64) float64 {
	return 50 + 10*(mean-best)/stdDev
}

func bestCorrectedTime(past []models.EntryRecord, cond Conditions) (float64, bool) {
	best, found := 0.0, false
	for _, p := range past {
		if p.Track != cond.Track || p.Surface != cond.Surface || p.Distance != cond.Distance {
			continue
		}
		t, ok := stats.CorrectedTime(p)
		if !ok {
			continue
		}
		if !found || t < best {
			best, found = t, true
		}
	}
	return best, found
}

func (c *Composer) connections(v *Vector, entry models.EntryRecord, pedigree models.Pedigree, cond Conditions) {
	bucket := stats.BucketOf(cond.Distance)

	sire := firstNonEmpty(entry.Sire, pedigree.Sire)
	if rs, ok := c.snapshot.Pedigree(stats.PedigreeKey{Role: stats.RoleSire, Name: sire, Surface: cond.Surface, Bucket: bucket}); ok && sire != "" {
		v.set(SirePlaceRate, rs.PlaceRate)
		v.set(SireSamples, float64(rs.Samples))
	}
	damsire := firstNonEmpty(entry.Damsire, pedigree.Damsire)
	if rs, ok := c.snapshot.Pedigree(stats.PedigreeKey{Role: stats.RoleDamsire, Name: damsire, Surface: cond.Surface, Bucket: bucket}); ok && damsire != "" {
		v.set(DamsirePlaceRate, rs.PlaceRate)
		v.set(DamsireSamples, float64(rs.Samples))
	}
	if rs, ok := c.snapshot.Jockey(stats.JockeyKey{Jockey: entry.Jockey, Track: cond.Track, Surface: cond.Surface, Distance: cond.Distance}); ok {
		v.set(JockeyPlaceRate, rs.PlaceRate)
		v.set(JockeySamples, float64(rs.Samples))
	}
	if rs, ok := c.snapshot.Gate(stats.GateKey{Track: cond.Track, Surface: cond.Surface, Distance: cond.Distance, Gate: entry.Gate}); ok {
		v.set(GatePlaceRate, rs.PlaceRate)
		v.set(GateSamples, float64(rs.Samples))
	}
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return ""
}
