// Package main provides the entry point for loading scraped race results
// and payouts into the database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/race-edge/internal/backtest"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/database"
	"github.com/yourusername/race-edge/internal/entrystore"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/models"
	"github.com/yourusername/race-edge/internal/repository"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile  string
	entriesFile string
	payoutsFile string

	appLogger *logrus.Logger
	cfg       *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVar(&entriesFile, "entries", "", "Result rows as a JSON array or JSON lines")
	rootCmd.Flags().StringVar(&payoutsFile, "payouts", "", "Payout records as a JSON array")
}

var rootCmd = &cobra.Command{
	Use:     "data-ingestion",
	Short:   "Load scraped race results and payouts into the database",
	Long:    `Parses scraped result rows into typed entries and inserts them, skipping rows already stored. Payout records replace any stored payouts of the same race.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := config.ApplySecrets(cmd.Context(), cfg, nil); err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return err
		}
		appLogger = logger.New(cfg.App.LogLevel, cfg.App.Environment, os.Stdout)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if entriesFile == "" && payoutsFile == "" {
			return fmt.Errorf("nothing to ingest: pass --entries and/or --payouts")
		}
		return run(cmd.Context())
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

func run(ctx context.Context) error {
	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repos, err := repository.NewRepositories(db, cfg.Database.InsertBatchSize)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if entriesFile != "" {
		if err := ingestEntries(ctx, repos.Entries, entriesFile); err != nil {
			return err
		}
	}
	if payoutsFile != "" {
		if err := ingestPayouts(ctx, repos.Payouts, payoutsFile); err != nil {
			return err
		}
	}
	return nil
}

func ingestEntries(ctx context.Context, repo repository.EntryRepository, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open entries file: %w", err)
	}
	defer f.Close()

	rows, err := entrystore.ReadRows(f)
	if err != nil {
		return err
	}
	// the store drops rows lacking either id and repeats within the file
	store := entrystore.FromRows(rows)
	valid := store.All()
	inserted, err := repo.InsertEntries(ctx, valid)
	if err != nil {
		return err
	}
	appLogger.WithFields(logrus.Fields{
		"file":       path,
		"rows":       len(rows),
		"duplicates": store.Duplicates(),
		"unkeyed":    len(rows) - store.Duplicates() - len(valid),
		"inserted":   inserted,
		"existing":   len(valid) - inserted,
	}).Info("Entries ingested")
	return nil
}

func ingestPayouts(ctx context.Context, repo repository.PayoutRepository, path string) error {
	payouts, err := backtest.LoadPayoutFile(path)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(payouts))
	for id := range payouts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]*models.PayoutRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, payouts[id])
	}
	if err := repo.UpsertBatch(ctx, records); err != nil {
		return err
	}
	appLogger.WithFields(logrus.Fields{"file": path, "races": len(records)}).Info("Payouts ingested")
	return nil
}
