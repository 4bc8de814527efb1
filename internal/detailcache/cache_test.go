package detailcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/race-edge/internal/models"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func perf(raceID string, daysAgo int) models.EntryRecord {
	rank := 1 + daysAgo%5
	return models.EntryRecord{
		RaceID:   raceID,
		HorseID:  "H1",
		Rank:     &rank,
		Distance: 1600,
		Date:     base.AddDate(0, 0, -daysAgo),
	}
}

func fixedCache() *Cache {
	c := New()
	c.now = func() time.Time { return base }
	return c
}

func raceIDs(p models.HorseProfile) []string {
	ids := make([]string, len(p.Performances))
	for i, r := range p.Performances {
		ids[i] = r.RaceID
	}
	return ids
}

func TestMergeIsIdempotent(t *testing.T) {
	x := []models.EntryRecord{perf("R1", 30), perf("R2", 10), perf("R3", 20)}

	once := fixedCache()
	once.Merge("H1", models.Pedigree{Sire: "S"}, x)

	twice := fixedCache()
	twice.Merge("H1", models.Pedigree{Sire: "S"}, x)
	added := twice.Merge("H1", models.Pedigree{Sire: "S"}, x)

	assert.Equal(t, 0, added)
	a, _ := once.Get("H1")
	b, _ := twice.Get("H1")
	assert.Equal(t, a, b)
	assert.Equal(t, []string{"R2", "R3", "R1"}, raceIDs(a), "newest first")
}

func TestMergeUnionByRaceID(t *testing.T) {
	x := []models.EntryRecord{perf("R1", 30), perf("R2", 10)}
	y := []models.EntryRecord{perf("R2", 10), perf("R4", 5)}

	c := fixedCache()
	assert.Equal(t, 2, c.Merge("H1", models.Pedigree{}, x))
	assert.Equal(t, 1, c.Merge("H1", models.Pedigree{}, y))

	p, ok := c.Get("H1")
	require.True(t, ok)
	assert.Equal(t, []string{"R4", "R2", "R1"}, raceIDs(p))

	// the other order gives the same history
	d := fixedCache()
	d.Merge("H1", models.Pedigree{}, y)
	d.Merge("H1", models.Pedigree{}, x)
	q, _ := d.Get("H1")
	assert.Equal(t, raceIDs(p), raceIDs(q))
}

func TestMergeKeepsPedigreeWhenEmpty(t *testing.T) {
	c := fixedCache()
	c.Merge("H1", models.Pedigree{Sire: "Kitasan Black", Damsire: "Sakura Bakushin O"}, nil)
	c.Merge("H1", models.Pedigree{}, []models.EntryRecord{perf("R1", 3)})

	p, _ := c.Get("H1")
	assert.Equal(t, "Kitasan Black", p.Pedigree.Sire)
	assert.Equal(t, "Sakura Bakushin O", p.Pedigree.Damsire)
}

func TestGetReturnsCopy(t *testing.T) {
	c := fixedCache()
	c.Merge("H1", models.Pedigree{}, []models.EntryRecord{perf("R1", 3)})

	p, _ := c.Get("H1")
	p.Performances[0].RaceID = "mutated"

	again, _ := c.Get("H1")
	assert.Equal(t, "R1", again.Performances[0].RaceID)
}

func TestProfileAsOf(t *testing.T) {
	c := fixedCache()
	c.Merge("H1", models.Pedigree{}, []models.EntryRecord{perf("R1", 30), perf("R2", 10), perf("R3", 0)})

	p, ok := c.ProfileAsOf("H1", base.AddDate(0, 0, -10))
	require.True(t, ok)
	assert.Equal(t, []string{"R1"}, raceIDs(p), "same-day race excluded")

	p, ok = c.ProfileAsOf("H1", base.AddDate(0, 0, 1))
	require.True(t, ok)
	assert.Len(t, p.Performances, 3)

	_, ok = c.ProfileAsOf("nobody", base)
	assert.False(t, ok)
}

func TestMissingIDs(t *testing.T) {
	c := fixedCache()
	c.Merge("H1", models.Pedigree{}, nil)

	assert.Equal(t, []string{"H2", "H3"}, c.MissingIDs([]string{"H3", "H1", "H2", "H3", ""}))
	assert.Empty(t, c.MissingIDs([]string{"H1"}))
}

func TestStaleIDs(t *testing.T) {
	c := fixedCache()
	c.Merge("H1", models.Pedigree{}, nil)
	c.now = func() time.Time { return base.AddDate(0, 0, 10) }
	c.Merge("H2", models.Pedigree{}, nil)

	assert.Equal(t, []string{"H1"}, c.StaleIDs(base.AddDate(0, 0, 5)))
}

func TestMergeWithNothingNewMarksFresh(t *testing.T) {
	c := fixedCache()
	c.Merge("H1", models.Pedigree{}, []models.EntryRecord{perf("R1", 3)})

	week := base.AddDate(0, 0, 7)
	c.now = func() time.Time { return week }
	assert.Equal(t, 0, c.Merge("H1", models.Pedigree{}, []models.EntryRecord{perf("R1", 3)}))

	got, _ := c.Get("H1")
	assert.Equal(t, week, got.UpdatedAt)
	assert.Empty(t, c.StaleIDs(week.Add(-time.Hour)))
}

func TestConcurrentMerges(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				horse := fmt.Sprintf("H%d", i%5)
				c.Merge(horse, models.Pedigree{}, []models.EntryRecord{perf(fmt.Sprintf("R%d", i), i)})
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
	for _, id := range c.IDs() {
		p, _ := c.Get(id)
		assert.Len(t, p.Performances, 10)
	}
}
