package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/race-edge/internal/database"
)

// statement is one query queued into a batch
type statement struct {
	sql  string
	args []any
}

// batchSender sends statements in one round trip; results come back in order
type batchSender func(ctx context.Context, stmts []statement) pgx.BatchResults

func pgxBatchSender(db database.Querier) batchSender {
	return func(ctx context.Context, stmts []statement) pgx.BatchResults {
		batch := &pgx.Batch{}
		for _, s := range stmts {
			batch.Queue(s.sql, s.args...)
		}
		return db.SendBatch(ctx, batch)
	}
}
