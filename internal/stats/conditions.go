package stats

import (
	"strings"

	"github.com/yourusername/race-edge/internal/models"
)

// conditionOffsets holds the seconds a going adds to a race time.
// Heavy ground slows turf but quickens a dirt track, so dirt offsets are negative.
var conditionOffsets = map[models.Surface]map[models.TrackCondition]float64{
	models.SurfaceTurf: {
		models.ConditionFirm:     0,
		models.ConditionGood:     0.5,
		models.ConditionYielding: 1.0,
		models.ConditionSoft:     1.8,
	},
	models.SurfaceDirt: {
		models.ConditionFirm:     0,
		models.ConditionGood:     -0.3,
		models.ConditionYielding: -0.6,
		models.ConditionSoft:     -1.0,
	},
	models.SurfaceJump: {
		models.ConditionFirm:     0,
		models.ConditionGood:     0.5,
		models.ConditionYielding: 1.0,
		models.ConditionSoft:     1.8,
	},
}

// Offset returns the additive time offset for a surface and going.
// Unknown combinations have no offset.
func Offset(surface models.Surface, condition models.TrackCondition) float64 {
	return conditionOffsets[surface][condition]
}

// Correct removes the going effect from an elapsed time
func Correct(elapsed float64, surface models.Surface, condition models.TrackCondition) float64 {
	return elapsed - Offset(surface, condition)
}

// Restore is the inverse of Correct
func Restore(corrected float64, surface models.Surface, condition models.TrackCondition) float64 {
	return corrected + Offset(surface, condition)
}

// CorrectedTime returns the condition-corrected time of an entry, if it has one
func CorrectedTime(e models.EntryRecord) (float64, bool) {
	if e.ElapsedSeconds == nil || *e.ElapsedSeconds <= 0 {
		return 0, false
	}
	return Correct(*e.ElapsedSeconds, e.Surface, e.Condition), true
}

// DistanceBucket partitions distances into five bands
type DistanceBucket int

const (
	BucketUnknown      DistanceBucket = iota
	BucketSprint                      // <= 1400
	BucketMile                        // 1401-1800
	BucketIntermediate                // 1801-2200
	BucketLong                        // 2201-2600
	BucketExtended                    // >= 2601
)

// BucketOf returns the band a distance falls in
func BucketOf(distance int) DistanceBucket {
	switch {
	case distance <= 0:
		return BucketUnknown
	case distance <= 1400:
		return BucketSprint
	case distance <= 1800:
		return BucketMile
	case distance <= 2200:
		return BucketIntermediate
	case distance <= 2600:
		return BucketLong
	default:
		return BucketExtended
	}
}

func (b DistanceBucket) String() string {
	switch b {
	case BucketSprint:
		return "<=1400"
	case BucketMile:
		return "1401-1800"
	case BucketIntermediate:
		return "1801-2200"
	case BucketLong:
		return "2201-2600"
	case BucketExtended:
		return ">=2601"
	}
	return "unknown"
}

// ClassLevel ranks race classes, higher is stronger
type ClassLevel int

const (
	ClassMaiden ClassLevel = iota
	ClassTier1
	ClassTier2
	ClassTier3
	ClassOpen
	ClassListed
	ClassG3
	ClassG2
	ClassG1
)

// classLadder is checked top-down and the first match wins
var classLadder = []struct {
	level    ClassLevel
	keywords []string
}{
	{ClassG1, []string{"(g1)", "g1", "(gi)", "グレード1", "ｇ１", "Ｇ１"}},
	{ClassG2, []string{"(g2)", "g2", "(gii)", "グレード2", "ｇ２", "Ｇ２"}},
	{ClassG3, []string{"(g3)", "g3", "(giii)", "グレード3", "ｇ３", "Ｇ３"}},
	{ClassListed, []string{"(l)", "listed", "リステッド"}},
	{ClassOpen, []string{"open", "stakes", "オープン", "(op)", "ステークス"}},
	{ClassTier3, []string{"3勝", "1600万"}},
	{ClassTier2, []string{"2勝", "1000万"}},
	{ClassTier1, []string{"1勝", "500万"}},
	{ClassMaiden, []string{"新馬", "未勝利", "maiden", "debut"}},
}

// ClassOf derives the class level from a free-text race name.
// Names matching no keyword get the lowest level.
func ClassOf(raceName string) ClassLevel {
	name := strings.ToLower(raceName)
	for _, rung := range classLadder {
		for _, kw := range rung.keywords {
			if strings.Contains(name, strings.ToLower(kw)) {
				return rung.level
			}
		}
	}
	return ClassMaiden
}
