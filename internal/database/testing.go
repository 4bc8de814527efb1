package database

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestDSNEnv names the variable holding an integration database DSN
const TestDSNEnv = "RACE_EDGE_TEST_DATABASE_DSN"

// SetupTestDB connects to the integration database, applies the schema and
// empties both tables. The test is skipped when no DSN is configured.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv(TestDSNEnv)
	if dsn == "" {
		t.Skipf("integration test: set %s to run", TestDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Open(ctx, dsn, 4, 1)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE race_entries, race_payouts"); err != nil {
		db.Close()
		t.Fatalf("failed to truncate test tables: %v", err)
	}

	t.Cleanup(db.Close)
	return db
}
