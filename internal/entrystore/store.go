// Package entrystore provides the immutable in-memory table of historical
// race entries that every statistic and backtest reads from.
package entrystore

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/race-edge/internal/models"
)

// Store is a read-only table of entries, one row per horse per race.
// Rows are ordered by date, race id and horse number.
type Store struct {
	rows       []models.EntryRecord
	byRace     map[string][]int
	duplicates int
}

// New builds a store from records. A second record for the same
// (race, horse) pair is dropped and counted.
func New(records []models.EntryRecord) *Store {
	seen := make(map[models.EntryKey]struct{}, len(records))
	rows := make([]models.EntryRecord, 0, len(records))
	dups := 0
	for _, r := range records {
		if r.RaceID == "" || r.HorseID == "" {
			continue
		}
		if _, ok := seen[r.Key()]; ok {
			dups++
			continue
		}
		seen[r.Key()] = struct{}{}
		if r.Distance < 0 {
			r.Distance = 0
		}
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.RaceID != b.RaceID {
			return a.RaceID < b.RaceID
		}
		return a.HorseNumber < b.HorseNumber
	})
	return index(rows, dups)
}

func index(rows []models.EntryRecord, dups int) *Store {
	s := &Store{rows: rows, byRace: make(map[string][]int), duplicates: dups}
	for i, r := range rows {
		s.byRace[r.RaceID] = append(s.byRace[r.RaceID], i)
	}
	return s
}

// Len returns the number of rows
func (s *Store) Len() int {
	return len(s.rows)
}

// Duplicates returns how many duplicate rows were dropped on construction
func (s *Store) Duplicates() int {
	return s.duplicates
}

// All returns a copy of every row
func (s *Store) All() []models.EntryRecord {
	return append([]models.EntryRecord(nil), s.rows...)
}

// Filter returns the rows matching pred
func (s *Store) Filter(pred func(models.EntryRecord) bool) []models.EntryRecord {
	var out []models.EntryRecord
	for _, r := range s.rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// Before returns a view holding only rows dated strictly before asOf.
// Rows without a date are excluded.
func (s *Store) Before(asOf time.Time) *Store {
	// rows are date-sorted, undated rows first
	cut := sort.Search(len(s.rows), func(i int) bool {
		return !s.rows[i].Date.Before(asOf)
	})
	rows := make([]models.EntryRecord, 0, cut)
	for _, r := range s.rows[:cut] {
		if r.HasDate() {
			rows = append(rows, r)
		}
	}
	return index(rows, 0)
}

// Race returns the entries of one race ordered by horse number
func (s *Store) Race(raceID string) []models.EntryRecord {
	idx := s.byRace[raceID]
	out := make([]models.EntryRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.rows[i])
	}
	return out
}

// RaceDates returns the distinct race dates within [from, to], ascending.
// A zero bound is open.
func (s *Store) RaceDates(from, to time.Time) []time.Time {
	var dates []time.Time
	var last time.Time
	for _, r := range s.rows {
		if !r.HasDate() {
			continue
		}
		d := models.DateOnly(r.Date)
		if (!from.IsZero() && d.Before(from)) || (!to.IsZero() && d.After(to)) {
			continue
		}
		if len(dates) == 0 || !d.Equal(last) {
			dates = append(dates, d)
			last = d
		}
	}
	return dates
}

// RacesOn returns the distinct race ids run on the given day, sorted
func (s *Store) RacesOn(day time.Time) []string {
	day = models.DateOnly(day)
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range s.rows {
		if !r.HasDate() || !models.DateOnly(r.Date).Equal(day) {
			continue
		}
		if _, ok := seen[r.RaceID]; ok {
			continue
		}
		seen[r.RaceID] = struct{}{}
		ids = append(ids, r.RaceID)
	}
	sort.Strings(ids)
	return ids
}

// Group partitions rows by a typed key. Rows for which key reports false
// are left out of every group but stay in the store.
func Group[K comparable](s *Store, key func(models.EntryRecord) (K, bool)) map[K][]models.EntryRecord {
	groups := make(map[K][]models.EntryRecord)
	for _, r := range s.rows {
		k, ok := key(r)
		if !ok {
			continue
		}
		groups[k] = append(groups[k], r)
	}
	return groups
}

// Dimension extracts one grouping column from an entry
type Dimension struct {
	Name  string
	Value func(models.EntryRecord) (string, bool)
}

// Built-in grouping dimensions
var (
	ByTrack     = Dimension{"track", func(e models.EntryRecord) (string, bool) { return e.Track, e.Track != "" }}
	BySurface   = Dimension{"surface", func(e models.EntryRecord) (string, bool) { return string(e.Surface), e.Surface != "" }}
	ByCondition = Dimension{"condition", func(e models.EntryRecord) (string, bool) { return string(e.Condition), e.Condition != "" }}
	ByDistance  = Dimension{"distance", func(e models.EntryRecord) (string, bool) { return strconv.Itoa(e.Distance), e.Distance > 0 }}
	BySire      = Dimension{"sire", func(e models.EntryRecord) (string, bool) { return e.Sire, e.Sire != "" }}
	ByDamsire   = Dimension{"damsire", func(e models.EntryRecord) (string, bool) { return e.Damsire, e.Damsire != "" }}
	ByJockey    = Dimension{"jockey", func(e models.EntryRecord) (string, bool) { return e.Jockey, e.Jockey != "" }}
	ByGate      = Dimension{"gate", func(e models.EntryRecord) (string, bool) { return strconv.Itoa(e.Gate), e.Gate > 0 }}
	ByRace      = Dimension{"race", func(e models.EntryRecord) (string, bool) { return e.RaceID, e.RaceID != "" }}
	ByHorse     = Dimension{"horse", func(e models.EntryRecord) (string, bool) { return e.HorseID, e.HorseID != "" }}
)

const keySeparator = "\x1f"

// GroupKey is the tuple of dimension values identifying a group
type GroupKey string

// Parts returns the dimension values in the order they were requested
func (k GroupKey) Parts() []string {
	return strings.Split(string(k), keySeparator)
}

// GroupBy partitions rows by the given dimensions. A row missing any of
// the dimensions is excluded from the result only.
func (s *Store) GroupBy(dims ...Dimension) map[GroupKey][]models.EntryRecord {
	return Group(s, func(e models.EntryRecord) (GroupKey, bool) {
		parts := make([]string, len(dims))
		for i, d := range dims {
			v, ok := d.Value(e)
			if !ok {
				return "", false
			}
			parts[i] = v
		}
		return GroupKey(strings.Join(parts, keySeparator)), true
	})
}
