// Package repository reads and appends race entries and payouts in PostgreSQL.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/race-edge/internal/database"
	"github.com/yourusername/race-edge/internal/entrystore"
)

const defaultBatchSize = 500

// Repositories holds all repository implementations
type Repositories struct {
	Entries EntryRepository
	Payouts PayoutRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB, batchSize int) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &Repositories{
		Entries: NewPostgresEntryRepository(db, batchSize),
		Payouts: NewPostgresPayoutRepository(db),
	}, nil
}

// LoadStore reads the entries of a window into an immutable entry store
func LoadStore(ctx context.Context, repo EntryRepository, from, to time.Time) (*entrystore.Store, error) {
	entries, err := repo.LoadEntries(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return entrystore.New(entries), nil
}
