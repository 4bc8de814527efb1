package models

import (
	"sort"
	"time"
)

// Pedigree holds the breeding facts used by the sire statistics
type Pedigree struct {
	Sire    string `json:"sire" msgpack:"sire"`
	Damsire string `json:"damsire" msgpack:"damsire"`
}

// HorseProfile is the cached history of a single horse.
// Performances are kept sorted by date, newest first, with unique race ids.
type HorseProfile struct {
	HorseID      string        `json:"horse_id" msgpack:"horse_id"`
	Pedigree     Pedigree      `json:"pedigree" msgpack:"pedigree"`
	Performances []EntryRecord `json:"performances" msgpack:"performances"`
	UpdatedAt    time.Time     `json:"updated_at" msgpack:"updated_at"`
}

// Before returns a copy holding only performances dated strictly before asOf
func (h HorseProfile) Before(asOf time.Time) HorseProfile {
	out := HorseProfile{HorseID: h.HorseID, Pedigree: h.Pedigree, UpdatedAt: h.UpdatedAt}
	for _, p := range h.Performances {
		if p.HasDate() && p.Date.Before(asOf) {
			out.Performances = append(out.Performances, p)
		}
	}
	return out
}

// SortPerformances orders performances newest first.
// Ties on date are broken by race id so the order is deterministic.
func SortPerformances(records []EntryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Date.Equal(records[j].Date) {
			return records[i].RaceID > records[j].RaceID
		}
		return records[i].Date.After(records[j].Date)
	})
}
