package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-edge/internal/database"
	"github.com/yourusername/race-edge/internal/models"
)

// fakeDB records statements and answers from canned results
type fakeDB struct {
	execs    []statement
	batches  [][]statement
	row      fakeRow
	batchErr error
	// existing keys report zero affected rows on insert
	existing map[string]bool
	// queued query counts of batches sent through the pgx interface
	pgxBatchLens []int
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, statement{sql, args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported by fake")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.execs = append(f.execs, statement{sql, args})
	return f.row
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.pgxBatchLens = append(f.pgxBatchLens, b.Len())
	return &fakeBatch{db: f}
}

// send replaces the pgx batch sender so tests can see the queued statements
func (f *fakeDB) send(_ context.Context, stmts []statement) pgx.BatchResults {
	f.batches = append(f.batches, stmts)
	return &fakeBatch{db: f, stmts: stmts}
}

func newEntryRepo(db *fakeDB, batchSize int) *PostgresEntryRepository {
	repo := NewPostgresEntryRepository(db, batchSize)
	repo.send = db.send
	return repo
}

func newPayoutRepo(db *fakeDB) *PostgresPayoutRepository {
	repo := NewPostgresPayoutRepository(db)
	repo.send = db.send
	return repo
}

type fakeBatch struct {
	db    *fakeDB
	stmts []statement
	next  int
}

func (b *fakeBatch) Exec() (pgconn.CommandTag, error) {
	if b.db.batchErr != nil {
		return pgconn.CommandTag{}, b.db.batchErr
	}
	if b.next >= len(b.stmts) {
		return pgconn.CommandTag{}, errors.New("no queued statement")
	}
	stmt := b.stmts[b.next]
	b.next++
	key := fmt.Sprint(stmt.args[0], "/", stmt.args[1])
	if b.db.existing[key] {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	if b.db.existing != nil {
		b.db.existing[key] = true
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (b *fakeBatch) Query() (pgx.Rows, error) { return nil, errors.New("not supported by fake") }
func (b *fakeBatch) QueryRow() pgx.Row        { return fakeRow{err: errors.New("not supported by fake")} }
func (b *fakeBatch) Close() error             { return nil }

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.data
	return nil
}

func entry(race, horse string) models.EntryRecord {
	rank := 2
	elapsed := 95.3
	return models.EntryRecord{
		RaceID:         race,
		HorseID:        horse,
		Rank:           &rank,
		Surface:        models.SurfaceTurf,
		Distance:       1600,
		Track:          "Tokyo",
		Condition:      models.ConditionFirm,
		Date:           time.Date(2024, 5, 12, 15, 40, 0, 0, time.UTC),
		ElapsedSeconds: &elapsed,
	}
}

func TestInsertEntriesIsIdempotent(t *testing.T) {
	db := &fakeDB{existing: map[string]bool{}}
	repo := newEntryRepo(db, 2)
	entries := []models.EntryRecord{entry("R1", "H1"), entry("R1", "H2"), entry("R2", "H1")}

	n, err := repo.InsertEntries(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, db.batches, 2, "batches of two")
	assert.Len(t, db.batches[0], 2)
	assert.Len(t, db.batches[1], 1)
	assert.Contains(t, db.batches[0][0].sql, "ON CONFLICT (race_id, horse_id) DO NOTHING")

	n, err = repo.InsertEntries(context.Background(), entries)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second ingestion adds nothing")
}

func TestInsertEntriesRejectsMissingIDs(t *testing.T) {
	db := &fakeDB{}
	repo := newEntryRepo(db, 0)

	_, err := repo.InsertEntries(context.Background(), []models.EntryRecord{entry("R1", "H1"), entry("R1", "")})
	assert.ErrorIs(t, err, ErrInvalidEntry)
	assert.Empty(t, db.batches, "nothing is written when any entry is invalid")
}

func TestInsertEntriesBatchError(t *testing.T) {
	db := &fakeDB{batchErr: errors.New("connection reset")}
	repo := newEntryRepo(db, 10)

	_, err := repo.InsertEntries(context.Background(), []models.EntryRecord{entry("R1", "H1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPgxBatchSenderQueuesEveryStatement(t *testing.T) {
	db := &fakeDB{}
	send := pgxBatchSender(db)

	stmts := []statement{
		{insertEntrySQL, entryArgs(entry("R1", "H1"))},
		{insertEntrySQL, entryArgs(entry("R1", "H2"))},
		{upsertPayoutSQL, []any{"R1", []byte("{}")}},
	}
	require.NoError(t, send(context.Background(), stmts).Close())
	assert.Equal(t, []int{3}, db.pgxBatchLens)
}

func TestEntryRepositoryUsesPgxBatches(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresEntryRepository(db, 2)

	// the pgx fake cannot answer statements, so the insert fails after sending
	_, err := repo.InsertEntries(context.Background(), []models.EntryRecord{entry("R1", "H1"), entry("R1", "H2"), entry("R2", "H1")})
	require.Error(t, err)
	assert.Equal(t, []int{2}, db.pgxBatchLens, "first batch holds two rows")
}

func TestEntryArgs(t *testing.T) {
	e := entry("R1", "H1")
	args := entryArgs(e)
	require.Len(t, args, 22)
	assert.Equal(t, "turf", args[4])
	assert.Equal(t, "firm", args[7])
	date, ok := args[13].(*time.Time)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), *date, "stored as a calendar day")

	e.Date = time.Time{}
	assert.Nil(t, entryArgs(e)[13])
}

func TestWindowQuery(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	q, args := windowQuery(time.Time{}, time.Time{})
	assert.NotContains(t, q, "WHERE")
	assert.Empty(t, args)

	q, args = windowQuery(from, to)
	assert.Contains(t, q, "race_date >= $1 AND race_date <= $2")
	assert.Equal(t, []any{from, to}, args)

	q, args = windowQuery(time.Time{}, to)
	assert.Contains(t, q, "WHERE race_date <= $1")
	assert.Equal(t, []any{to}, args)
}

func payoutRecord() *models.PayoutRecord {
	return &models.PayoutRecord{
		RaceID: "R1",
		Pools: map[models.BetType]models.Payout{
			models.BetTypePlace: {
				Combinations: []models.Combination{{3}, {7}, {1}},
				Amounts:      []decimal.Decimal{decimal.NewFromInt(210), decimal.NewFromInt(340), decimal.NewFromInt(150)},
			},
		},
	}
}

func TestPayoutUpsertAndRead(t *testing.T) {
	db := &fakeDB{}
	repo := newPayoutRepo(db)

	require.NoError(t, repo.Upsert(context.Background(), payoutRecord()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "ON CONFLICT (race_id) DO UPDATE")
	assert.Equal(t, "R1", db.execs[0].args[0])

	db.row = fakeRow{data: db.execs[0].args[1].([]byte)}
	got, err := repo.Payout(context.Background(), "R1")
	require.NoError(t, err)
	pool, ok := got.Pool(models.BetTypePlace)
	require.True(t, ok)
	assert.Equal(t, []models.Combination{{3}, {7}, {1}}, pool.Combinations)
	require.Len(t, pool.Amounts, 3)
	assert.True(t, pool.Amounts[0].Equal(decimal.NewFromInt(210)))
}

func TestPayoutNotFound(t *testing.T) {
	repo := newPayoutRepo(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})

	_, err := repo.Payout(context.Background(), "R404")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPayoutValidation(t *testing.T) {
	repo := newPayoutRepo(&fakeDB{})

	err := repo.Upsert(context.Background(), &models.PayoutRecord{})
	require.Error(t, err)

	bad := payoutRecord()
	bad.Pools["show"] = models.Payout{}
	assert.ErrorIs(t, repo.Upsert(context.Background(), bad), models.ErrInvalidBetType)
}

func TestPayoutUpsertBatch(t *testing.T) {
	db := &fakeDB{}
	repo := newPayoutRepo(db)

	second := payoutRecord()
	second.RaceID = "R2"
	require.NoError(t, repo.UpsertBatch(context.Background(), []*models.PayoutRecord{payoutRecord(), second}))
	require.Len(t, db.batches, 1)
	assert.Len(t, db.batches[0], 2)

	require.NoError(t, repo.UpsertBatch(context.Background(), nil))
	assert.Len(t, db.batches, 1)
}

func TestRepositoriesAgainstPostgres(t *testing.T) {
	db := database.SetupTestDB(t)
	ctx := context.Background()

	repos, err := NewRepositories(db, 2)
	require.NoError(t, err)

	entries := []models.EntryRecord{entry("R1", "H1"), entry("R1", "H2"), entry("R2", "H3")}
	entries[2].Date = entries[2].Date.AddDate(0, 1, 0)
	n, err := repos.Entries.InsertEntries(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repos.Entries.InsertEntries(ctx, entries)
	require.NoError(t, err)
	assert.Zero(t, n)

	store, err := LoadStore(ctx, repos.Entries, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
	got := store.Race("R1")
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Rank)
	assert.Equal(t, 2, *got[0].Rank)
	assert.Equal(t, models.SurfaceTurf, got[0].Surface)

	ids, err := repos.Entries.HorseIDs(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"H3"}, ids)

	require.NoError(t, repos.Payouts.Upsert(ctx, payoutRecord()))
	rec, err := repos.Payouts.Payout(ctx, "R1")
	require.NoError(t, err)
	assert.Contains(t, rec.Pools, models.BetTypePlace)

	_, err = repos.Payouts.Payout(ctx, "R2")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
