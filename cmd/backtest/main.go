// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/race-edge/internal/backtest"
	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/logger"
	"github.com/yourusername/race-edge/internal/strategy"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	modeHistorical  = "historical"
	modeMonteCarlo  = "monte-carlo"
	modeWalkForward = "walk-forward"
	modeAll         = "all"
)

var (
	configFile    string
	policyName    string
	startDate     string
	endDate       string
	mode          string
	outputPath    string
	payoutFile    string
	exportDataset bool
	compare       []string

	appLogger *logrus.Logger
	cfg       *config.Config
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	flags.StringVar(&policyName, "policy", "", "Betting policy to replay (overrides config)")
	flags.StringVar(&startDate, "start", "", "First race date, YYYY-MM-DD (overrides config)")
	flags.StringVar(&endDate, "end", "", "Last race date, YYYY-MM-DD (overrides config)")
	flags.StringVar(&mode, "mode", modeHistorical, "Backtest mode: historical, monte-carlo, walk-forward, all")
	flags.StringVarP(&outputPath, "output", "o", "", "Output directory (overrides config)")
	flags.StringVar(&payoutFile, "payouts", "", "Read payouts from a JSON file instead of the database")
	flags.BoolVar(&exportDataset, "export-dataset", false, "Write composed feature vectors with outcomes")
	flags.StringSliceVar(&compare, "compare", nil, "Replay several policies side by side")
}

var rootCmd = &cobra.Command{
	Use:     "backtest",
	Short:   "Replay race history through a predictor and betting policy",
	Long:    `Replays every race in the date window day by day, composing point-in-time features, scoring them and settling the policy's bets against the official payouts.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		appLogger = logger.New(cfg.App.LogLevel, cfg.App.Environment, os.Stdout)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBacktest(cmd.Context())
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

// loadConfig reads the config file, overlays secrets and flags, then validates
func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if err := config.ApplySecrets(ctx, cfg, nil); err != nil {
		return err
	}
	applyFlags(&cfg.Backtest)
	return config.Validate(cfg)
}

func applyFlags(bt *config.BacktestConfig) {
	if policyName != "" {
		bt.Policy = policyName
	}
	if startDate != "" {
		bt.StartDate = startDate
	}
	if endDate != "" {
		bt.EndDate = endDate
	}
	if outputPath != "" {
		bt.OutputPath = outputPath
	}
	if payoutFile != "" {
		bt.PayoutFile = payoutFile
	}
	if exportDataset {
		bt.ExportDataset = true
	}
	if len(compare) > 0 {
		bt.Compare = compare
	}
}

func runBacktest(ctx context.Context) error {
	deps, err := setupDependencies(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer deps.Close()

	appLogger.WithFields(logrus.Fields{
		"mode":    mode,
		"policy":  cfg.Backtest.Policy,
		"start":   cfg.Backtest.StartDate,
		"end":     cfg.Backtest.EndDate,
		"entries": deps.store.Len(),
	}).Info("Starting backtest")

	if len(cfg.Backtest.Compare) > 0 {
		return runComparison(ctx, deps.engine, cfg.Backtest.Compare)
	}

	switch mode {
	case modeHistorical:
		_, err = runHistorical(ctx, deps.engine)
	case modeMonteCarlo:
		var res *backtest.Result
		if res, err = runHistorical(ctx, deps.engine); err == nil {
			_, err = runMonteCarlo(ctx, res)
		}
	case modeWalkForward:
		_, err = runWalkForward(ctx, deps.engine)
	case modeAll:
		err = runAllMethods(ctx, deps.engine)
	default:
		err = fmt.Errorf("unsupported mode: %s", mode)
	}
	return err
}

func runHistorical(ctx context.Context, engine *backtest.Engine) (*backtest.Result, error) {
	res, err := engine.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("historical backtest failed: %w", err)
	}
	fmt.Println(backtest.GenerateConsoleReport(res))

	if err := backtest.ExportToJSON(res, outputFile("result.json")); err != nil {
		return nil, err
	}
	if err := backtest.GenerateCSVExport(res, outputFile("equity_curve.csv")); err != nil {
		return nil, err
	}
	if cfg.Backtest.ExportDataset {
		if err := backtest.ExportDataset(res.Dataset, outputFile("dataset.jsonl")); err != nil {
			return nil, err
		}
		appLogger.WithField("rows", len(res.Dataset)).Info("Dataset exported")
	}
	return res, nil
}

func runMonteCarlo(ctx context.Context, res *backtest.Result) (*backtest.MonteCarloResult, error) {
	mc, err := backtest.RunMonteCarlo(ctx, res.Settlements, backtest.MonteCarloConfig{
		Iterations: cfg.Backtest.MonteCarloIterations,
		Seed:       cfg.Backtest.MonteCarloSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("monte carlo failed: %w", err)
	}
	appLogger.WithFields(logrus.Fields{
		"iterations":      mc.Iterations,
		"mean_roi":        mc.MeanROI,
		"prob_of_profit":  mc.ProbabilityOfProfit,
		"races_resampled": mc.Races,
	}).Info("Monte Carlo completed")
	return &mc, backtest.ExportToJSON(mc, outputFile("monte_carlo.json"))
}

func runWalkForward(ctx context.Context, engine *backtest.Engine) (*backtest.WalkForwardResult, error) {
	wf, err := backtest.RunWalkForward(ctx, engine, backtest.WalkForwardConfig{
		TestWindowDays:   cfg.Backtest.WalkForwardDays,
		StepSizeDays:     cfg.Backtest.WalkForwardStepDays,
		MinBetsPerWindow: cfg.Backtest.MinBetsPerWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("walk-forward failed: %w", err)
	}
	appLogger.WithFields(logrus.Fields{
		"windows":     len(wf.Windows),
		"mean_roi":    wf.MeanROI,
		"consistency": wf.ConsistencyScore,
	}).Info("Walk-forward completed")
	return &wf, backtest.ExportToJSON(wf, outputFile("walk_forward.json"))
}

func runAllMethods(ctx context.Context, engine *backtest.Engine) error {
	res, err := runHistorical(ctx, engine)
	if err != nil {
		return err
	}
	mc, err := runMonteCarlo(ctx, res)
	if err != nil {
		return err
	}
	var wf *backtest.WalkForwardResult
	if cfg.Backtest.WalkForwardDays > 0 {
		if wf, err = runWalkForward(ctx, engine); err != nil {
			return err
		}
	} else {
		appLogger.Info("walk_forward_days not set, skipping walk-forward")
	}

	agg := backtest.AggregateResults(res, mc, wf)
	fmt.Println(backtest.GenerateAggregateReport(agg))
	return backtest.ExportToJSON(agg, outputFile("aggregate.json"))
}

// runComparison replays each named policy over the same window
func runComparison(ctx context.Context, engine *backtest.Engine, names []string) error {
	params := backtest.PolicyParams(&cfg.Backtest)
	policies := make([]strategy.Policy, 0, len(names))
	for _, name := range names {
		p, err := strategy.New(name, params)
		if err != nil {
			return err
		}
		policies = append(policies, p)
	}

	results, err := engine.RunMany(ctx, policies)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}
	for _, res := range results {
		fmt.Println(backtest.GenerateConsoleReport(res))
		if err := backtest.ExportToJSON(res, outputFile(fmt.Sprintf("result_%s.json", res.Policy))); err != nil {
			return err
		}
	}
	return nil
}

func outputFile(name string) string {
	return filepath.Join(cfg.Backtest.OutputPath, name)
}
