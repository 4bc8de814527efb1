package models

import (
	"strings"
	"time"
)

// Surface represents the racing surface
type Surface string

const (
	SurfaceTurf Surface = "turf"
	SurfaceDirt Surface = "dirt"
	SurfaceJump Surface = "jump"
)

// TrackCondition represents the going reported for a race
type TrackCondition string

const (
	ConditionFirm     TrackCondition = "firm"
	ConditionGood     TrackCondition = "good"
	ConditionYielding TrackCondition = "yielding"
	ConditionSoft     TrackCondition = "soft"
)

// EntryRecord is one horse's participation in one race.
// Pointer fields are nil when the source value was missing or unparseable.
type EntryRecord struct {
	RaceID         string         `db:"race_id" json:"race_id" msgpack:"race_id" validate:"required"`
	HorseID        string         `db:"horse_id" json:"horse_id" msgpack:"horse_id" validate:"required"`
	HorseName      string         `db:"horse_name" json:"horse_name" msgpack:"horse_name"`
	Rank           *int           `db:"rank" json:"rank" msgpack:"rank"`
	Surface        Surface        `db:"surface" json:"surface" msgpack:"surface"`
	Distance       int            `db:"distance" json:"distance" msgpack:"distance"`
	Track          string         `db:"track" json:"track" msgpack:"track"`
	Condition      TrackCondition `db:"condition" json:"condition" msgpack:"condition"`
	Sire           string         `db:"sire" json:"sire" msgpack:"sire"`
	Damsire        string         `db:"damsire" json:"damsire" msgpack:"damsire"`
	Jockey         string         `db:"jockey" json:"jockey" msgpack:"jockey"`
	Gate           int            `db:"gate" json:"gate" msgpack:"gate"`
	HorseNumber    int            `db:"horse_number" json:"horse_number" msgpack:"horse_number"`
	Date           time.Time      `db:"race_date" json:"race_date" msgpack:"race_date"`
	ElapsedSeconds *float64       `db:"elapsed_seconds" json:"elapsed_seconds" msgpack:"elapsed_seconds"`
	RaceName       string         `db:"race_name" json:"race_name" msgpack:"race_name"`
	Margin         *float64       `db:"margin" json:"margin" msgpack:"margin"`                   // lengths behind the winner
	ClosingTime    *float64       `db:"closing_time" json:"closing_time" msgpack:"closing_time"` // last 600m
	WeightCarried  *float64       `db:"weight_carried" json:"weight_carried" msgpack:"weight_carried"`
	BodyWeight     *float64       `db:"body_weight" json:"body_weight" msgpack:"body_weight"`
	WinOdds        *float64       `db:"win_odds" json:"win_odds" msgpack:"win_odds"`
	Popularity     *int           `db:"popularity" json:"popularity" msgpack:"popularity"`
}

// Key returns the identity of the entry
func (e EntryRecord) Key() EntryKey {
	return EntryKey{RaceID: e.RaceID, HorseID: e.HorseID}
}

// HasRank reports whether the horse finished with a valid rank
func (e EntryRecord) HasRank() bool {
	return e.Rank != nil && *e.Rank > 0
}

// RankAtMost reports whether the horse finished at or above the given rank
func (e EntryRecord) RankAtMost(n int) bool {
	return e.HasRank() && *e.Rank <= n
}

// HasDate reports whether the race date is known
func (e EntryRecord) HasDate() bool {
	return !e.Date.IsZero()
}

// EntryKey identifies an entry: one horse in one race
type EntryKey struct {
	RaceID  string
	HorseID string
}

// NormalizeSurface maps source surface labels onto Surface values
func NormalizeSurface(raw string) (Surface, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "turf", "芝", "t":
		return SurfaceTurf, true
	case "dirt", "ダート", "ダ", "d":
		return SurfaceDirt, true
	case "jump", "障", "障害", "j":
		return SurfaceJump, true
	}
	return "", false
}

// NormalizeCondition maps source going labels onto TrackCondition values
func NormalizeCondition(raw string) (TrackCondition, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "firm", "良", "good to firm":
		return ConditionFirm, true
	case "good", "稍重", "稍":
		return ConditionGood, true
	case "yielding", "重", "good to soft":
		return ConditionYielding, true
	case "soft", "heavy", "不良", "不":
		return ConditionSoft, true
	}
	return "", false
}

// DateOnly truncates a timestamp to its calendar day in UTC
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
