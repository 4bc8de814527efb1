package entrystore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yourusername/race-edge/internal/models"
)

// RawRow is one result row as scraped, every column still text
type RawRow struct {
	RaceID      string `json:"race_id"`
	HorseID     string `json:"horse_id"`
	HorseName   string `json:"horse_name"`
	Rank        string `json:"rank"`
	Surface     string `json:"surface"`
	Distance    string `json:"distance"`
	Track       string `json:"track"`
	Condition   string `json:"condition"`
	Sire        string `json:"sire"`
	Damsire     string `json:"damsire"`
	Jockey      string `json:"jockey"`
	Gate        string `json:"gate"`
	HorseNumber string `json:"horse_number"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Margin      string `json:"margin"`
	Closing     string `json:"closing"`
	Weight      string `json:"weight"`
	BodyWeight  string `json:"body_weight"`
	WinOdds     string `json:"win_odds"`
	Popularity  string `json:"popularity"`
	RaceName    string `json:"race_name"`
}

// Record converts the row into a typed entry. Columns that fail to parse
// become missing values.
func (r RawRow) Record() models.EntryRecord {
	surface, _ := models.NormalizeSurface(r.Surface)
	condition, _ := models.NormalizeCondition(r.Condition)
	rec := models.EntryRecord{
		RaceID:         strings.TrimSpace(r.RaceID),
		HorseID:        strings.TrimSpace(r.HorseID),
		HorseName:      strings.TrimSpace(r.HorseName),
		Rank:           ParseRank(r.Rank),
		Surface:        surface,
		Distance:       ParseDistance(r.Distance),
		Track:          strings.TrimSpace(r.Track),
		Condition:      condition,
		Sire:           strings.TrimSpace(r.Sire),
		Damsire:        strings.TrimSpace(r.Damsire),
		Jockey:         strings.TrimSpace(r.Jockey),
		Gate:           ParseInt(r.Gate),
		HorseNumber:    ParseInt(r.HorseNumber),
		Date:           ParseDate(r.Date),
		ElapsedSeconds: ParseElapsed(r.Time),
		Margin:         ParseMargin(r.Margin),
		ClosingTime:    ParseFloat(r.Closing),
		WeightCarried:  ParseFloat(r.Weight),
		BodyWeight:     ParseBodyWeight(r.BodyWeight),
		WinOdds:        ParseFloat(r.WinOdds),
		RaceName:       strings.TrimSpace(r.RaceName),
	}
	if p := ParseInt(r.Popularity); p > 0 {
		rec.Popularity = &p
	}
	// a distance column like "芝1600" also carries the surface
	if rec.Surface == "" {
		prefix := strings.TrimSpace(r.Distance)
		if i := strings.IndexAny(prefix, "0123456789"); i >= 0 {
			prefix = prefix[:i]
		}
		if s, ok := models.NormalizeSurface(prefix); ok {
			rec.Surface = s
		}
	}
	return rec
}

// FromRows parses raw rows and builds a store
func FromRows(rows []RawRow) *Store {
	records := make([]models.EntryRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Record())
	}
	return New(records)
}

// ReadRows decodes raw rows from either a JSON array or JSON lines
func ReadRows(r io.Reader) ([]RawRow, error) {
	br := bufio.NewReader(r)
	first, err := firstByte(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var rows []RawRow
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("failed to decode rows: %w", err)
		}
		return rows, nil
	}

	var rows []RawRow
	for {
		var row RawRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return rows, nil
			}
			return nil, fmt.Errorf("failed to decode row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
}

// firstByte peeks past leading whitespace
func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
