package repository

import (
	"context"
	"time"

	"github.com/yourusername/race-edge/internal/models"
)

// EntryRepository defines the interface for race entry data access
type EntryRepository interface {
	// InsertEntries appends entries, ignoring ones already stored, and
	// returns how many were new
	InsertEntries(ctx context.Context, entries []models.EntryRecord) (int, error)
	// LoadEntries returns entries dated within [from, to]. Zero bounds are
	// open; undated entries are only returned when both bounds are zero.
	LoadEntries(ctx context.Context, from, to time.Time) ([]models.EntryRecord, error)
	// HorseIDs lists horses with an entry on or after since
	HorseIDs(ctx context.Context, since time.Time) ([]string, error)
}

// PayoutRepository defines the interface for payout data access
type PayoutRepository interface {
	Upsert(ctx context.Context, record *models.PayoutRecord) error
	UpsertBatch(ctx context.Context, records []*models.PayoutRecord) error
	// Payout returns models.ErrNotFound when the race has no record
	Payout(ctx context.Context, raceID string) (*models.PayoutRecord, error)
}
