package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/race-edge/internal/database"
	"github.com/yourusername/race-edge/internal/models"
)

const upsertPayoutSQL = `INSERT INTO race_payouts (race_id, pools, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (race_id) DO UPDATE SET pools = EXCLUDED.pools, updated_at = EXCLUDED.updated_at`

// PostgresPayoutRepository implements PayoutRepository for PostgreSQL.
// Pools are stored as one JSONB document per race.
type PostgresPayoutRepository struct {
	db   database.Querier
	send batchSender
}

// NewPostgresPayoutRepository creates a new payout repository
func NewPostgresPayoutRepository(db database.Querier) *PostgresPayoutRepository {
	return &PostgresPayoutRepository{db: db, send: pgxBatchSender(db)}
}

// Upsert stores the payouts of a race, replacing any previous record
func (r *PostgresPayoutRepository) Upsert(ctx context.Context, record *models.PayoutRecord) error {
	pools, err := encodePools(record)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, upsertPayoutSQL, record.RaceID, pools); err != nil {
		return fmt.Errorf("failed to upsert payout for race %s: %w", record.RaceID, err)
	}
	return nil
}

// UpsertBatch stores many payout records in one round trip
func (r *PostgresPayoutRepository) UpsertBatch(ctx context.Context, records []*models.PayoutRecord) error {
	if len(records) == 0 {
		return nil
	}
	stmts := make([]statement, 0, len(records))
	for _, rec := range records {
		pools, err := encodePools(rec)
		if err != nil {
			return err
		}
		stmts = append(stmts, statement{upsertPayoutSQL, []any{rec.RaceID, pools}})
	}

	results := r.send(ctx, stmts)
	for _, rec := range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to upsert payout for race %s: %w", rec.RaceID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close payout batch: %w", err)
	}
	return nil
}

// Payout retrieves the payout record of a race
func (r *PostgresPayoutRepository) Payout(ctx context.Context, raceID string) (*models.PayoutRecord, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, "SELECT pools FROM race_payouts WHERE race_id = $1", raceID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payout for race %s: %w", raceID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payout for race %s: %w", raceID, err)
	}

	record := &models.PayoutRecord{RaceID: raceID}
	if err := json.Unmarshal(raw, &record.Pools); err != nil {
		return nil, fmt.Errorf("failed to decode payout for race %s: %w", raceID, err)
	}
	return record, nil
}

func encodePools(record *models.PayoutRecord) ([]byte, error) {
	if record == nil || record.RaceID == "" {
		return nil, fmt.Errorf("payout record requires a race id")
	}
	for betType := range record.Pools {
		if !betType.Valid() {
			return nil, fmt.Errorf("%w: %q in race %s", models.ErrInvalidBetType, betType, record.RaceID)
		}
	}
	pools := record.Pools
	if pools == nil {
		pools = map[models.BetType]models.Payout{}
	}
	data, err := json.Marshal(pools)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payout for race %s: %w", record.RaceID, err)
	}
	return data, nil
}
