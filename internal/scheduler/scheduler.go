// Package scheduler runs the periodic detail cache refresh on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrRunning = errors.New("scheduler is running")
	ErrNoJobs  = errors.New("no jobs scheduled")
)

// Scheduler manages scheduled cache refresh jobs
type Scheduler struct {
	cron            *cron.Cron
	logger          logrus.FieldLogger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler. Specs accept an optional seconds
// field and descriptors such as @daily. A run still in progress when its
// next tick arrives makes that tick a no-op.
func NewScheduler(logger logrus.FieldLogger) *Scheduler {
	logger = logger.WithField("component", "scheduler")
	cl := cronLogger{logger}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:          logger,
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleCacheRefresh runs job on the cron spec
func (s *Scheduler) ScheduleCacheRefresh(spec string, job *CacheRefreshJob) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return 0, fmt.Errorf("cannot schedule job: %w", ErrRunning)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		report, err := job.Run(context.Background())
		if err != nil {
			s.logger.WithError(err).Error("Scheduled cache refresh failed")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"requested": report.Requested,
			"merged":    report.Merged,
			"failed":    len(report.Failed),
		}).Info("Scheduled cache refresh completed")
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("spec", spec).Info("Scheduled cache refresh job")
	return entryID, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrRunning
	}
	if len(s.jobIDs) == 0 {
		return ErrNoJobs
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs, up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler stop timed out after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the earliest next run of any job, zero when stopped
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	var next time.Time
	for _, id := range s.jobIDs {
		entry := s.cron.Entry(id)
		if entry.Valid() && (next.IsZero() || entry.Next.Before(next)) {
			next = entry.Next
		}
	}
	return next
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, id := range s.jobIDs {
		if entry := s.cron.Entry(id); entry.Valid() {
			entries = append(entries, entry)
		}
	}
	return entries
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(kvFields(keysAndValues)).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
