package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-edge/internal/detailcache"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/models"
)

type mockSource struct{ mock.Mock }

func (m *mockSource) HorseIDs(ctx context.Context, since time.Time) ([]string, error) {
	args := m.Called(ctx, since)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

type mockRefresher struct{ mock.Mock }

func (m *mockRefresher) Refresh(ctx context.Context, ids []string) *detailcache.RefreshReport {
	return m.Called(ctx, ids).Get(0).(*detailcache.RefreshReport)
}

func cachedHorse(id string) *detailcache.Cache {
	c := detailcache.New()
	c.Merge(id, models.Pedigree{Sire: "Kitasan Black"}, []models.EntryRecord{{
		RaceID:  "R1",
		HorseID: id,
		Date:    time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}})
	return c
}

func newJob(source CandidateSource, cache *detailcache.Cache, refresher ProfileRefresher, cfg CacheRefreshConfig) *CacheRefreshJob {
	return NewCacheRefreshJob(source, cache, refresher, cfg, logger.Discard())
}

func TestCandidatesAreMissingHorses(t *testing.T) {
	source := &mockSource{}
	source.On("HorseIDs", mock.Anything, time.Time{}).Return([]string{"H3", "H1", "H2", "H3"}, nil)

	job := newJob(source, cachedHorse("H1"), &mockRefresher{}, CacheRefreshConfig{})
	ids, err := job.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"H2", "H3"}, ids)
	source.AssertExpectations(t)
}

func TestCandidatesIncludeStaleProfiles(t *testing.T) {
	source := &mockSource{}
	source.On("HorseIDs", mock.Anything, mock.Anything).Return([]string{"H1", "H2"}, nil)

	job := newJob(source, cachedHorse("H1"), &mockRefresher{}, CacheRefreshConfig{StaleAfter: time.Hour})
	job.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	ids, err := job.Candidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"H1", "H2"}, ids)
}

func TestCandidatesLookback(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	source := &mockSource{}
	source.On("HorseIDs", mock.Anything, now.AddDate(0, 0, -30)).Return([]string{}, nil)

	job := newJob(source, detailcache.New(), &mockRefresher{}, CacheRefreshConfig{LookbackDays: 30})
	job.now = func() time.Time { return now }

	_, err := job.Candidates(context.Background())
	require.NoError(t, err)
	source.AssertExpectations(t)
}

func TestRunRefreshesAndSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.msgpack")
	cache := cachedHorse("H1")
	source := &mockSource{}
	source.On("HorseIDs", mock.Anything, mock.Anything).Return([]string{"H1", "H2"}, nil)
	refresher := &mockRefresher{}
	refresher.On("Refresh", mock.Anything, []string{"H2"}).
		Return(&detailcache.RefreshReport{Requested: 1, Fetched: 1, Merged: 1, Failed: map[string]error{}})

	report, err := newJob(source, cache, refresher, CacheRefreshConfig{SavePath: path}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
	refresher.AssertExpectations(t)

	_, err = os.Stat(path)
	assert.NoError(t, err, "cache file written")
}

func TestRunNothingToRefresh(t *testing.T) {
	source := &mockSource{}
	source.On("HorseIDs", mock.Anything, mock.Anything).Return([]string{"H1"}, nil)
	refresher := &mockRefresher{}

	report, err := newJob(source, cachedHorse("H1"), refresher, CacheRefreshConfig{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Requested)
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestRunSourceError(t *testing.T) {
	source := &mockSource{}
	source.On("HorseIDs", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	job := newJob(source, detailcache.New(), &mockRefresher{}, CacheRefreshConfig{})
	var observed error
	job.OnComplete(func(_ *detailcache.RefreshReport, err error) { observed = err })

	_, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, err, observed)
}

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(logger.Discard())
	assert.ErrorIs(t, s.Start(), ErrNoJobs)

	job := newJob(&mockSource{}, detailcache.New(), &mockRefresher{}, CacheRefreshConfig{})
	_, err := s.ScheduleCacheRefresh("not a cron spec", job)
	require.Error(t, err)

	_, err = s.ScheduleCacheRefresh("0 6 * * *", job)
	require.NoError(t, err)
	_, err = s.ScheduleCacheRefresh("@every 1h", job)
	require.NoError(t, err)
	assert.Len(t, s.Entries(), 2)
	assert.True(t, s.NextRun().IsZero(), "no next run before start")

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.NextRun().IsZero())
	assert.ErrorIs(t, s.Start(), ErrRunning)

	_, err = s.ScheduleCacheRefresh("@daily", job)
	assert.ErrorIs(t, err, ErrRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop())
}
