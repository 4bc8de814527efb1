package features

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/race-edge/internal/detailcache"
	"github.com/yourusername/race-edge/internal/entrystore"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/stats"
)

var raceDay = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func history(n int, daysBefore int, rank int, elapsed float64) models.EntryRecord {
	return models.EntryRecord{
		RaceID:         fmt.Sprintf("P%02d", n),
		HorseID:        fmt.Sprintf("X%02d", n),
		Rank:           intPtr(rank),
		Surface:        models.SurfaceTurf,
		Distance:       1600,
		Track:          "Tokyo",
		Condition:      models.ConditionFirm,
		Sire:           "Deep Impact",
		Jockey:         "Lemaire",
		Gate:           4,
		Date:           raceDay.AddDate(0, 0, -daysBefore),
		ElapsedSeconds: floatPtr(elapsed),
	}
}

func runner() models.EntryRecord {
	return models.EntryRecord{
		RaceID:        "TARGET",
		HorseID:       "H1",
		Surface:       models.SurfaceTurf,
		Distance:      1600,
		Track:         "Tokyo",
		Sire:          "Deep Impact",
		Jockey:        "Lemaire",
		Gate:          4,
		Date:          raceDay,
		RaceName:      "Yasuda Kinen (G1)",
		WeightCarried: floatPtr(58),
		BodyWeight:    floatPtr(490),
		// outcome fields the composer must ignore
		Rank:           intPtr(1),
		ElapsedSeconds: floatPtr(80),
	}
}

func courseStore() *entrystore.Store {
	// mean 90.0, sample std 2.0
	var rows []models.EntryRecord
	for i, tm := range []float64{88, 88, 90, 92, 92} {
		rows = append(rows, history(i, 30+i, 2, tm))
	}
	return entrystore.New(rows)
}

func horseCache(perfs ...models.EntryRecord) *detailcache.Cache {
	c := detailcache.New()
	c.Merge("H1", models.Pedigree{Sire: "Deep Impact", Damsire: "Storm Cat"}, perfs)
	return c
}

func ownRun(id string, daysBefore, rank int, elapsed float64) models.EntryRecord {
	r := history(0, daysBefore, rank, elapsed)
	r.RaceID = id
	r.HorseID = "H1"
	return r
}

func TestTimeIndexScenario(t *testing.T) {
	assert.InDelta(t, 60.0, TimeIndexOf(90.0, 2.0, 88.0), 1e-9)

	snap := stats.Compute(courseStore(), raceDay, stats.DefaultThresholds())
	course, ok := snap.Course(stats.CourseKey{Track: "Tokyo", Surface: models.SurfaceTurf, Distance: 1600})
	require.True(t, ok)
	require.NotNil(t, course.StdDev)
	require.InDelta(t, 90.0, course.Mean, 1e-9)
	require.InDelta(t, 2.0, *course.StdDev, 1e-9)

	cache := horseCache(ownRun("A", 20, 3, 89.5), ownRun("B", 40, 1, 88.0))
	v, err := NewComposer(snap, cache).Compose(runner(), ConditionsOf(runner()))
	require.NoError(t, err)

	ti, ok := v.Get(TimeIndex)
	require.True(t, ok)
	assert.InDelta(t, 60.0, ti, 1e-9)
}

func TestTimeIndexMissingWithoutStdDev(t *testing.T) {
	// two rows give a mean but no standard deviation
	snap := stats.Compute(entrystore.New([]models.EntryRecord{history(1, 10, 1, 90), history(2, 11, 1, 91)}), raceDay, stats.DefaultThresholds())
	cache := horseCache(ownRun("A", 20, 1, 88.0))

	v, err := NewComposer(snap, cache).Compose(runner(), ConditionsOf(runner()))
	require.NoError(t, err)
	_, ok := v.Get(TimeIndex)
	assert.False(t, ok)
}

func TestRecentFormAndDeltas(t *testing.T) {
	a := ownRun("A", 14, 3, 95)
	a.Margin = floatPtr(0.5)
	a.ClosingTime = floatPtr(33.8)
	a.WeightCarried = floatPtr(57)
	a.BodyWeight = floatPtr(484)
	b := ownRun("B", 45, 1, 95)
	c := ownRun("C", 80, 7, 95)
	d := ownRun("D", 120, 2, 95)

	snap := stats.Compute(entrystore.New(nil), raceDay, stats.DefaultThresholds())
	v, err := NewComposer(snap, horseCache(d, b, a, c)).Compose(runner(), ConditionsOf(runner()))
	require.NoError(t, err)

	get := func(n Name) float64 {
		x, ok := v.Get(n)
		require.True(t, ok, n)
		return x
	}
	assert.Equal(t, 3.0, get(Last1Rank))
	assert.Equal(t, 1.0, get(Last2Rank))
	assert.Equal(t, 7.0, get(Last3Rank))
	assert.Equal(t, 0.5, get(Last1Margin))
	assert.Equal(t, 33.8, get(Last1Closing))
	assert.Equal(t, 1.0, get(WeightCarriedDelta))
	assert.Equal(t, 6.0, get(BodyWeightDelta))
	assert.Equal(t, 14.0, get(RestDays))
	assert.Equal(t, float64(stats.ClassG1), get(ClassLevel))

	_, ok := v.Get(Last2Margin)
	assert.False(t, ok)
}

func TestNoLookahead(t *testing.T) {
	// four sire rows before the race and one on race day
	var rows []models.EntryRecord
	for i := 0; i < 4; i++ {
		rows = append(rows, history(i, 10+i, 1, 90))
	}
	sameDay := history(9, 0, 1, 90)
	rows = append(rows, sameDay)
	store := entrystore.New(rows)

	sireKey := stats.PedigreeKey{Role: stats.RoleSire, Name: "Deep Impact", Surface: models.SurfaceTurf, Bucket: stats.BucketMile}
	future := stats.Compute(store, raceDay.AddDate(0, 0, 1), stats.DefaultThresholds())
	_, ok := future.Pedigree(sireKey)
	require.True(t, ok, "fixture: statistic exists only with race-day data")

	// a horse run dated after the race is in the cache
	cache := horseCache(ownRun("PAST", 30, 5, 95), ownRun("FUTURE", -7, 1, 95))

	snap := stats.Compute(store, raceDay, stats.DefaultThresholds())
	v, err := NewComposer(snap, cache).Compose(runner(), ConditionsOf(runner()))
	require.NoError(t, err)

	_, ok = v.Get(SirePlaceRate)
	assert.False(t, ok, "sire rate must be missing, not populated from race-day rows")
	_, ok = v.Get(SireSamples)
	assert.False(t, ok)

	last1, ok := v.Get(Last1Rank)
	require.True(t, ok)
	assert.Equal(t, 5.0, last1, "future run ignored")
	_, ok = v.Get(Last2Rank)
	assert.False(t, ok)

	// a snapshot built after the race is refused
	_, err = NewComposer(future, cache).Compose(runner(), ConditionsOf(runner()))
	assert.ErrorIs(t, err, ErrLookahead)
}

func TestComposeRequiresDate(t *testing.T) {
	snap := stats.Compute(entrystore.New(nil), raceDay, stats.DefaultThresholds())
	cond := ConditionsOf(runner())
	cond.Date = time.Time{}

	_, err := NewComposer(snap, horseCache()).Compose(runner(), cond)
	assert.ErrorIs(t, err, models.ErrMissingRaceDate)
}

func TestConnectionsPresentWithSamples(t *testing.T) {
	var rows []models.EntryRecord
	for i := 0; i < 10; i++ {
		rank := 1 + i%5
		rows = append(rows, history(i, 10+i, rank, 90))
	}
	snap := stats.Compute(entrystore.New(rows), raceDay, stats.DefaultThresholds())

	v, err := NewComposer(snap, horseCache()).Compose(runner(), ConditionsOf(runner()))
	require.NoError(t, err)

	rate, ok := v.Get(JockeyPlaceRate)
	require.True(t, ok)
	assert.InDelta(t, 0.6, rate, 1e-9)
	n, _ := v.Get(JockeySamples)
	assert.Equal(t, 10.0, n)

	gate, ok := v.Get(GatePlaceRate)
	require.True(t, ok)
	assert.InDelta(t, 0.6, gate, 1e-9)

	// no damsire rows in the store
	_, ok = v.Get(DamsirePlaceRate)
	assert.False(t, ok)
}

func TestMissingCountAndJSON(t *testing.T) {
	snap := stats.Compute(entrystore.New(nil), raceDay, stats.DefaultThresholds())
	v, err := NewComposer(snap, horseCache()).Compose(runner(), ConditionsOf(runner()))
	require.NoError(t, err)

	// only the class level is known for a debutant with no statistics
	assert.Equal(t, len(Schema)-1, v.MissingCount())

	data, err := json.Marshal(v)
	require.NoError(t, err)
	var doc struct {
		Schema   string              `json:"schema"`
		Features map[string]*float64 `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaVersion, doc.Schema)
	assert.Len(t, doc.Features, len(Schema))
	assert.Nil(t, doc.Features["time_index"])
	require.NotNil(t, doc.Features["class_level"])
}
