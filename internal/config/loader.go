package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourusername/race-edge/internal/detailcache"
	"github.com/yourusername/race-edge/internal/stats"
)

// EnvPrefix prefixes every environment override, e.g. RACE_EDGE_DATABASE_HOST
const EnvPrefix = "RACE_EDGE"

const defaultConfigPath = "config/config.yaml"

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return unmarshal(v)
}

// LoadWithDefaults loads configuration, tolerating a missing file. Defaults
// and environment variables fill whatever the file does not set.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers a default for every optional key. Registering the
// key also lets AutomaticEnv override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "race-edge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "race_edge")
	v.SetDefault("database.user", "race_edge")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)
	v.SetDefault("database.insert_batch_size", 500)

	v.SetDefault("secrets.enabled", false)
	v.SetDefault("secrets.region", "")
	v.SetDefault("secrets.secret_name", "")

	v.SetDefault("cache.path", "data/detail_cache.msgpack")
	v.SetDefault("cache.save_on_exit", true)

	v.SetDefault("fetch.base_url", "")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.retry_wait_min", 500*time.Millisecond)
	v.SetDefault("fetch.retry_wait_max", 10*time.Second)
	v.SetDefault("fetch.circuit_breaker_max", 10)
	v.SetDefault("fetch.circuit_cooldown", time.Minute)
	v.SetDefault("fetch.user_agent", "race-edge/1.0")
	refresh := detailcache.DefaultRefreshConfig()
	v.SetDefault("fetch.refresh.max_concurrency", refresh.MaxConcurrency)
	v.SetDefault("fetch.refresh.request_delay", refresh.RequestDelay)
	v.SetDefault("fetch.refresh.request_timeout", refresh.RequestTimeout)
	v.SetDefault("fetch.refresh.max_attempts", refresh.MaxAttempts)
	v.SetDefault("fetch.refresh.backoff_base", refresh.BackoffBase)
	v.SetDefault("fetch.refresh.backoff_max", refresh.BackoffMax)

	th := stats.DefaultThresholds()
	v.SetDefault("stats.course_mean", th.CourseMean)
	v.SetDefault("stats.course_std_dev", th.CourseStdDev)
	v.SetDefault("stats.course_max_rank", th.CourseMaxRank)
	v.SetDefault("stats.pedigree", th.Pedigree)
	v.SetDefault("stats.jockey", th.Jockey)
	v.SetDefault("stats.gate", th.Gate)
	v.SetDefault("stats.reference", th.Reference)
	v.SetDefault("stats.place_rank", th.PlaceRank)
	v.SetDefault("stats.max_gate", th.MaxGate)

	v.SetDefault("backtest.start_date", "")
	v.SetDefault("backtest.end_date", "")
	v.SetDefault("backtest.initial_bankroll", 100000)
	v.SetDefault("backtest.policy", "top_place")
	v.SetDefault("backtest.unit_stake", 100)
	v.SetDefault("backtest.min_probability", 0)
	v.SetDefault("backtest.kelly_fraction", 0.5)
	v.SetDefault("backtest.max_fraction", 0.05)
	v.SetDefault("backtest.min_edge", 0)
	v.SetDefault("backtest.payout_file", "")
	v.SetDefault("backtest.output_path", "output/backtest")
	v.SetDefault("backtest.export_dataset", false)
	v.SetDefault("backtest.monte_carlo_iterations", 1000)
	v.SetDefault("backtest.monte_carlo_seed", 42)
	v.SetDefault("backtest.walk_forward_days", 0)
	v.SetDefault("backtest.walk_forward_step_days", 0)
	v.SetDefault("backtest.min_bets_per_window", 10)

	v.SetDefault("predictor.model_path", "")
	v.SetDefault("predictor.grpc_address", "")
	v.SetDefault("predictor.model_version", "v1")
	v.SetDefault("predictor.timeout", 5*time.Second)
	v.SetDefault("predictor.cache_ttl", 10*time.Minute)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("scheduler.refresh_cron", "0 6 * * *")
	v.SetDefault("scheduler.stale_after", 7*24*time.Hour)
	v.SetDefault("scheduler.lookback_days", 0)
}
