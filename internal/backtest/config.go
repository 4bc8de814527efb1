package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/race-edge/internal/config"
	"github.com/yourusername/race-edge/internal/features"
	"github.com/yourusername/race-edge/internal/stats"
	"github.com/yourusername/race-edge/internal/strategy"
)

var ErrInvalidConfig = errors.New("invalid backtest config")

// Config holds the settings of one backtest run
type Config struct {
	// Start and End bound the replayed race dates, inclusive. A zero bound is open.
	Start           time.Time
	End             time.Time
	InitialBankroll decimal.Decimal
	Thresholds      stats.Thresholds
	// CollectDataset keeps every composed vector with its outcome for export
	CollectDataset bool
	// Weights scores exported dataset rows
	Weights features.Weights
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.BacktestConfig, th stats.Thresholds) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("%w: backtest config is required", ErrInvalidConfig)
	}
	var bt Config
	var err error
	if cfg.StartDate != "" {
		if bt.Start, err = time.Parse("2006-01-02", cfg.StartDate); err != nil {
			return Config{}, fmt.Errorf("invalid start date: %w", err)
		}
	}
	if cfg.EndDate != "" {
		if bt.End, err = time.Parse("2006-01-02", cfg.EndDate); err != nil {
			return Config{}, fmt.Errorf("invalid end date: %w", err)
		}
	}
	bt.InitialBankroll = decimal.NewFromFloat(cfg.InitialBankroll)
	bt.Thresholds = th
	bt.CollectDataset = cfg.ExportDataset
	bt.Weights = features.DefaultWeights()
	return bt, bt.Validate()
}

// PolicyParams converts app config to policy parameters
func PolicyParams(cfg *config.BacktestConfig) strategy.Params {
	return strategy.Params{
		UnitStake:      decimal.NewFromFloat(cfg.UnitStake),
		MinProbability: cfg.MinProbability,
		KellyFraction:  cfg.KellyFraction,
		MaxFraction:    cfg.MaxFraction,
		MinEdge:        cfg.MinEdge,
	}
}

// Validate validates backtest config parameters
func (c Config) Validate() error {
	if !c.Start.IsZero() && !c.End.IsZero() && c.Start.After(c.End) {
		return fmt.Errorf("%w: start date must not be after end date", ErrInvalidConfig)
	}
	if !c.InitialBankroll.IsPositive() {
		return fmt.Errorf("%w: initial bankroll must be positive", ErrInvalidConfig)
	}
	return nil
}
