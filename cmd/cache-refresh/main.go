// Package main provides the entry point for the horse detail cache refresher.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/database"
	"github.com/yourusername/race-edge/internal/detailcache"
	"github.com/yourusername/race-edge/internal/health"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/metrics"
	"github.com/yourusername/race-edge/internal/repository"
	"github.com/yourusername/race-edge/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	serve      bool

	appLogger *logrus.Logger
	cfg       *config.Config
	db        *database.DB
	repos     *repository.Repositories
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().BoolVar(&serve, "serve", false, "Keep running and refresh on the configured cron schedule")
}

var rootCmd = &cobra.Command{
	Use:     "cache-refresh",
	Short:   "Fetch missing and stale horse profiles into the detail cache",
	Long:    `Lists horses from the entry table, fetches the profiles the detail cache lacks or holds stale, and persists the cache. With --serve it runs on a cron schedule behind health and metrics endpoints.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer db.Close()
		if serve {
			return runService(cmd.Context())
		}
		return runOnce(cmd.Context())
	},
	SilenceUsage: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if err := config.ApplySecrets(ctx, cfg, nil); err != nil {
		return err
	}
	return config.Validate(cfg)
}

func setupDependencies(ctx context.Context) error {
	appLogger = logger.New(cfg.App.LogLevel, cfg.App.Environment, os.Stdout)

	var err error
	db, err = database.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	repos, err = repository.NewRepositories(db, cfg.Database.InsertBatchSize)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	return nil
}

// newJob wires fetcher, refresher and cache into a refresh job
func newJob(cache *detailcache.Cache) (*scheduler.CacheRefreshJob, func() error) {
	fetcher := detailcache.NewHTTPFetcher(detailcache.HTTPFetcherConfig{
		BaseURL:           cfg.Fetch.BaseURL,
		Timeout:           cfg.Fetch.Timeout,
		MaxRetries:        cfg.Fetch.MaxRetries,
		RetryWaitMin:      cfg.Fetch.RetryWaitMin,
		RetryWaitMax:      cfg.Fetch.RetryWaitMax,
		CircuitBreakerMax: cfg.Fetch.CircuitBreakerMax,
		CircuitCooldown:   cfg.Fetch.CircuitCooldown,
		UserAgent:         cfg.Fetch.UserAgent,
	}, appLogger)
	refresher := detailcache.NewRefresher(cache, fetcher, cfg.Fetch.Refresh, logger.NewFetchLogger(appLogger))

	job := scheduler.NewCacheRefreshJob(repos.Entries, cache, refresher, scheduler.CacheRefreshConfig{
		LookbackDays: cfg.Scheduler.LookbackDays,
		StaleAfter:   cfg.Scheduler.StaleAfter,
		SavePath:     cfg.Cache.Path,
	}, appLogger)
	return job, fetcher.Close
}

func runOnce(ctx context.Context) error {
	cache := detailcache.Load(cfg.Cache.Path, appLogger)
	job, closeFetcher := newJob(cache)
	defer closeFetcher()

	report, err := job.Run(ctx)
	if err != nil {
		return err
	}
	appLogger.WithFields(logrus.Fields{
		"requested":   report.Requested,
		"merged":      report.Merged,
		"failed":      len(report.Failed),
		"not_started": len(report.NotStarted),
		"profiles":    cache.Len(),
	}).Info("Cache refresh finished")
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d horses failed to refresh", len(report.Failed))
	}
	return nil
}

func runService(ctx context.Context) error {
	if cfg.Scheduler.RefreshCron == "" {
		return errors.New("scheduler.refresh_cron is required with --serve")
	}
	cache := detailcache.Load(cfg.Cache.Path, appLogger)
	metrics.InitRegistry()
	metrics.UpdateCacheProfiles(cache.Len())

	job, closeFetcher := newJob(cache)
	defer closeFetcher()

	sched := scheduler.NewScheduler(appLogger)
	if _, err := sched.ScheduleCacheRefresh(cfg.Scheduler.RefreshCron, job); err != nil {
		return err
	}

	srvCfg := health.Config{
		ServiceName: "cache-refresh",
		Version:     Version,
		Addr:        fmt.Sprintf(":%d", cfg.Metrics.Port),
		Logger:      appLogger,
	}
	if cfg.Metrics.Enabled {
		srvCfg.Metrics = metrics.Handler()
		srvCfg.MetricsPath = cfg.Metrics.Path
	}
	srv := health.NewServer(srvCfg)
	srv.AddCheck("database", db.HealthCheck)
	srv.AddCheck("scheduler", func(context.Context) error {
		if !sched.IsRunning() {
			return errors.New("scheduler not running")
		}
		return nil
	})
	job.OnComplete(func(report *detailcache.RefreshReport, err error) {
		if report == nil {
			srv.RecordRefresh(0, 0, err)
			return
		}
		srv.RecordRefresh(report.Merged, len(report.Failed), err)
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return err
	}
	srv.SetReady(true)
	appLogger.WithFields(logrus.Fields{
		"spec":     cfg.Scheduler.RefreshCron,
		"next_run": sched.NextRun(),
	}).Info("Cache refresh service running")

	<-ctx.Done()
	srv.SetReady(false)
	appLogger.Info("Shutting down")
	if err := sched.Stop(); err != nil {
		appLogger.WithError(err).Warn("Scheduler did not stop cleanly")
	}
	if cfg.Cache.SaveOnExit {
		if err := cache.Save(cfg.Cache.Path); err != nil {
			return fmt.Errorf("failed to save detail cache: %w", err)
		}
	}
	return nil
}
