package database

import (
	"context"
	"fmt"

	"github.com/yourusername/race-edge/internal/config"
)

// schema is applied idempotently at startup
var schema = []string{
	`CREATE TABLE IF NOT EXISTS race_entries (
		race_id         TEXT NOT NULL,
		horse_id        TEXT NOT NULL,
		horse_name      TEXT NOT NULL DEFAULT '',
		rank            INTEGER,
		surface         TEXT NOT NULL DEFAULT '',
		distance        INTEGER NOT NULL DEFAULT 0,
		track           TEXT NOT NULL DEFAULT '',
		condition       TEXT NOT NULL DEFAULT '',
		sire            TEXT NOT NULL DEFAULT '',
		damsire         TEXT NOT NULL DEFAULT '',
		jockey          TEXT NOT NULL DEFAULT '',
		gate            INTEGER NOT NULL DEFAULT 0,
		horse_number    INTEGER NOT NULL DEFAULT 0,
		race_date       DATE,
		elapsed_seconds DOUBLE PRECISION,
		race_name       TEXT NOT NULL DEFAULT '',
		margin          DOUBLE PRECISION,
		closing_time    DOUBLE PRECISION,
		weight_carried  DOUBLE PRECISION,
		body_weight     DOUBLE PRECISION,
		win_odds        DOUBLE PRECISION,
		popularity      INTEGER,
		PRIMARY KEY (race_id, horse_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_race_entries_date ON race_entries (race_date)`,
	`CREATE INDEX IF NOT EXISTS idx_race_entries_horse ON race_entries (horse_id)`,
	`CREATE TABLE IF NOT EXISTS race_payouts (
		race_id    TEXT PRIMARY KEY,
		pools      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Initialize creates a connection pool and makes sure the tables exist
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	err = db.WithTransaction(ctx, func(q Querier) error {
		return EnsureSchema(ctx, q)
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the entry and payout tables when missing
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
