package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/race-edge/internal/database"
	"github.com/yourusername/race-edge/internal/models"
)

// ErrInvalidEntry is returned for entries without a race or horse id
var ErrInvalidEntry = errors.New("invalid entry")

const entryColumns = `race_id, horse_id, horse_name, rank, surface, distance, track, condition,
	sire, damsire, jockey, gate, horse_number, race_date, elapsed_seconds, race_name,
	margin, closing_time, weight_carried, body_weight, win_odds, popularity`

const insertEntrySQL = `INSERT INTO race_entries (` + entryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	ON CONFLICT (race_id, horse_id) DO NOTHING`

// PostgresEntryRepository implements EntryRepository for PostgreSQL
type PostgresEntryRepository struct {
	db        database.Querier
	send      batchSender
	batchSize int
	validate  *validator.Validate
}

// NewPostgresEntryRepository creates a new entry repository
func NewPostgresEntryRepository(db database.Querier, batchSize int) *PostgresEntryRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &PostgresEntryRepository{
		db:        db,
		send:      pgxBatchSender(db),
		batchSize: batchSize,
		validate:  validator.New(),
	}
}

// InsertEntries appends entries in batches. Re-inserting a stored
// (race id, horse id) is a no-op, so ingestion can be repeated safely.
func (r *PostgresEntryRepository) InsertEntries(ctx context.Context, entries []models.EntryRecord) (int, error) {
	for i := range entries {
		if err := r.validate.Struct(entries[i]); err != nil {
			return 0, fmt.Errorf("%w at index %d: %v", ErrInvalidEntry, i, err)
		}
	}

	inserted := 0
	for start := 0; start < len(entries); start += r.batchSize {
		end := min(start+r.batchSize, len(entries))
		n, err := r.insertBatch(ctx, entries[start:end])
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func (r *PostgresEntryRepository) insertBatch(ctx context.Context, entries []models.EntryRecord) (int, error) {
	stmts := make([]statement, 0, len(entries))
	for _, e := range entries {
		stmts = append(stmts, statement{insertEntrySQL, entryArgs(e)})
	}

	results := r.send(ctx, stmts)
	inserted := 0
	for range entries {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return inserted, fmt.Errorf("failed to insert entries: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return inserted, fmt.Errorf("failed to close entry batch: %w", err)
	}
	return inserted, nil
}

func entryArgs(e models.EntryRecord) []any {
	var date *time.Time
	if e.HasDate() {
		d := models.DateOnly(e.Date)
		date = &d
	}
	return []any{
		e.RaceID, e.HorseID, e.HorseName, e.Rank, string(e.Surface), e.Distance, e.Track, string(e.Condition),
		e.Sire, e.Damsire, e.Jockey, e.Gate, e.HorseNumber, date, e.ElapsedSeconds, e.RaceName,
		e.Margin, e.ClosingTime, e.WeightCarried, e.BodyWeight, e.WinOdds, e.Popularity,
	}
}

// LoadEntries retrieves entries dated within the window
func (r *PostgresEntryRepository) LoadEntries(ctx context.Context, from, to time.Time) ([]models.EntryRecord, error) {
	query, args := windowQuery(from, to)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}
	return entries, nil
}

func windowQuery(from, to time.Time) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !from.IsZero() {
		args = append(args, models.DateOnly(from))
		where = append(where, fmt.Sprintf("race_date >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, models.DateOnly(to))
		where = append(where, fmt.Sprintf("race_date <= $%d", len(args)))
	}
	query := "SELECT " + entryColumns + " FROM race_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY race_date, race_id, horse_number, horse_id", args
}

func scanEntry(row pgx.CollectableRow) (models.EntryRecord, error) {
	var (
		e                  models.EntryRecord
		surface, condition string
		date               *time.Time
	)
	err := row.Scan(
		&e.RaceID, &e.HorseID, &e.HorseName, &e.Rank, &surface, &e.Distance, &e.Track, &condition,
		&e.Sire, &e.Damsire, &e.Jockey, &e.Gate, &e.HorseNumber, &date, &e.ElapsedSeconds, &e.RaceName,
		&e.Margin, &e.ClosingTime, &e.WeightCarried, &e.BodyWeight, &e.WinOdds, &e.Popularity,
	)
	if err != nil {
		return models.EntryRecord{}, err
	}
	e.Surface = models.Surface(surface)
	e.Condition = models.TrackCondition(condition)
	if date != nil {
		e.Date = models.DateOnly(*date)
	}
	return e, nil
}

// HorseIDs lists distinct horses with an entry on or after since. A zero
// since lists every horse.
func (r *PostgresEntryRepository) HorseIDs(ctx context.Context, since time.Time) ([]string, error) {
	query := "SELECT DISTINCT horse_id FROM race_entries ORDER BY horse_id"
	var args []any
	if !since.IsZero() {
		query = "SELECT DISTINCT horse_id FROM race_entries WHERE race_date >= $1 ORDER BY horse_id"
		args = append(args, models.DateOnly(since))
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query horse ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan horse id: %w", err)
	}
	return ids, nil
}
