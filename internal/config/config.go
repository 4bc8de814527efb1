// Package config provides configuration management for race-edge.
package config

import (
	"fmt"
	"time"

	"github.com/yourusername/race-edge/internal/detailcache"
	"github.com/yourusername/race-edge/internal/stats"
)

// DateLayout is the layout of every configured calendar date
const DateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	App       AppConfig        `mapstructure:"app" validate:"required"`
	Database  DatabaseConfig   `mapstructure:"database" validate:"required"`
	Secrets   SecretsConfig    `mapstructure:"secrets"`
	Cache     CacheConfig      `mapstructure:"cache" validate:"required"`
	Fetch     FetchConfig      `mapstructure:"fetch" validate:"required"`
	Stats     stats.Thresholds `mapstructure:"stats" validate:"required"`
	Features  FeaturesConfig   `mapstructure:"features"`
	Backtest  BacktestConfig   `mapstructure:"backtest" validate:"required"`
	Predictor PredictorConfig  `mapstructure:"predictor" validate:"required"`
	Metrics   MetricsConfig    `mapstructure:"metrics" validate:"required"`
	Scheduler SchedulerConfig  `mapstructure:"scheduler"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"gte=0"`
	InsertBatchSize    int    `mapstructure:"insert_batch_size" validate:"gt=0"`
}

// SecretsConfig points at an optional AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
}

// CacheConfig locates the durable horse detail cache
type CacheConfig struct {
	Path string `mapstructure:"path" validate:"required"`
	// SaveOnExit writes the cache back after a refresh or backtest
	SaveOnExit bool `mapstructure:"save_on_exit"`
}

// FetchConfig configures the horse profile endpoint and the refresher pool
type FetchConfig struct {
	BaseURL           string                    `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout           time.Duration             `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries        int                       `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryWaitMin      time.Duration             `mapstructure:"retry_wait_min" validate:"gte=0"`
	RetryWaitMax      time.Duration             `mapstructure:"retry_wait_max" validate:"gtefield=RetryWaitMin"`
	CircuitBreakerMax int                       `mapstructure:"circuit_breaker_max" validate:"gte=0"`
	CircuitCooldown   time.Duration             `mapstructure:"circuit_cooldown" validate:"gte=0"`
	UserAgent         string                    `mapstructure:"user_agent"`
	Refresh           detailcache.RefreshConfig `mapstructure:"refresh" validate:"required"`
}

// FeaturesConfig holds the composite score weights, keyed by feature name
type FeaturesConfig struct {
	Weights map[string]float64 `mapstructure:"weights"`
}

// BacktestConfig represents backtesting configuration
type BacktestConfig struct {
	StartDate       string   `mapstructure:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate         string   `mapstructure:"end_date" validate:"omitempty,datetime=2006-01-02"`
	InitialBankroll float64  `mapstructure:"initial_bankroll" validate:"required,gt=0"`
	Policy          string   `mapstructure:"policy" validate:"required,policy"`
	Compare         []string `mapstructure:"compare" validate:"dive,policy"`
	UnitStake       float64  `mapstructure:"unit_stake" validate:"required,gt=0"`
	MinProbability  float64  `mapstructure:"min_probability" validate:"gte=0,lte=1"`
	KellyFraction   float64  `mapstructure:"kelly_fraction" validate:"gt=0,lte=1"`
	MaxFraction     float64  `mapstructure:"max_fraction" validate:"gt=0,lte=1"`
	MinEdge         float64  `mapstructure:"min_edge" validate:"gte=0"`
	PayoutFile      string   `mapstructure:"payout_file"`
	OutputPath      string   `mapstructure:"output_path" validate:"required"`
	ExportDataset   bool     `mapstructure:"export_dataset"`

	MonteCarloIterations int   `mapstructure:"monte_carlo_iterations" validate:"gte=0"`
	MonteCarloSeed       int64 `mapstructure:"monte_carlo_seed"`
	WalkForwardDays      int   `mapstructure:"walk_forward_days" validate:"gte=0"`
	WalkForwardStepDays  int   `mapstructure:"walk_forward_step_days" validate:"gte=0"`
	MinBetsPerWindow     int   `mapstructure:"min_bets_per_window" validate:"gte=0"`
}

// Window parses the configured date bounds. Empty bounds stay zero.
func (b BacktestConfig) Window() (start, end time.Time, err error) {
	if b.StartDate != "" {
		if start, err = time.Parse(DateLayout, b.StartDate); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest start_date: %w", err)
		}
	}
	if b.EndDate != "" {
		if end, err = time.Parse(DateLayout, b.EndDate); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest end_date: %w", err)
		}
	}
	return start, end, nil
}

// PredictorConfig selects the model. A model file and a gRPC address are
// mutually exclusive.
type PredictorConfig struct {
	ModelPath    string        `mapstructure:"model_path" validate:"required_without=GRPCAddress,excluded_with=GRPCAddress"`
	GRPCAddress  string        `mapstructure:"grpc_address" validate:"required_without=ModelPath"`
	ModelVersion string        `mapstructure:"model_version"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

// Remote reports whether predictions come from the gRPC service
func (p PredictorConfig) Remote() bool {
	return p.GRPCAddress != ""
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// SchedulerConfig drives the periodic cache refresh
type SchedulerConfig struct {
	RefreshCron string        `mapstructure:"refresh_cron" validate:"omitempty,cronspec"`
	StaleAfter  time.Duration `mapstructure:"stale_after" validate:"gte=0"`
	// LookbackDays limits candidate horses to recent entries; 0 means all
	LookbackDays int `mapstructure:"lookback_days" validate:"gte=0"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// DSN returns the key/value connection string understood by pgx
func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
	if d.Password != "" {
		dsn += " password=" + d.Password
	}
	return dsn
}
