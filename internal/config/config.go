// Package config loads application configuration from defaults, an
// optional config file (JSON, TOML or YAML), WHEEL_* environment variables
// and bound command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/contactkeval/option-wheel/internal/backtest/engine"
	"github.com/contactkeval/option-wheel/internal/data"
)

// ErrConfigInvalid marks configuration that cannot be used.
var ErrConfigInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override, e.g. WHEEL_DATA_API_KEY.
const EnvPrefix = "WHEEL"

// Config holds all application configuration.
type Config struct {
	Backtest  BacktestConfig `mapstructure:"backtest"`
	Data      DataConfig     `mapstructure:"data"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Store     StoreConfig    `mapstructure:"store"`
	Log       LogConfig      `mapstructure:"log"`
	Server    ServerConfig   `mapstructure:"server"`
	ReportDir string         `mapstructure:"report_dir"`
}

// BacktestConfig holds the run parameters and engine tuning.
type BacktestConfig struct {
	Ticker          string  `mapstructure:"ticker"`
	StrikePct       float64 `mapstructure:"strike_pct"`       // e.g. 0.95
	Start           string  `mapstructure:"start"`            // YYYY-MM-DD
	End             string  `mapstructure:"end"`              // YYYY-MM-DD
	StartingCapital string  `mapstructure:"starting_capital"` // decimal text, e.g. "100000"
	StrikeRule      string  `mapstructure:"strike_rule"`      // govaluate over open, pct; empty = open * pct
	RiskFreeRate    float64 `mapstructure:"risk_free_rate"`
	VolWindow       int     `mapstructure:"vol_window"`
	BufferDays      int     `mapstructure:"buffer_days"`
}

// DataConfig selects the price and quote sources.
type DataConfig struct {
	Provider   string `mapstructure:"provider"` // synthetic, massive, csv
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	CSVDir     string `mapstructure:"csv_dir"`
	Seed       int64  `mapstructure:"seed"`
	LiveQuotes bool   `mapstructure:"live_quotes"` // consult the option chain before the model
}

// CacheConfig enables the Redis price cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StoreConfig selects run persistence.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory, sqlite, postgres
	DSN    string `mapstructure:"dsn"`
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Verbosity  int    `mapstructure:"verbosity"` // 0=errors,1=info,2=debug,3=trace
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key so environment overrides apply to all.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backtest.ticker", "")
	v.SetDefault("backtest.strike_pct", 0.95)
	v.SetDefault("backtest.start", "")
	v.SetDefault("backtest.end", "")
	v.SetDefault("backtest.starting_capital", "100000")
	v.SetDefault("backtest.strike_rule", "")
	v.SetDefault("backtest.risk_free_rate", engine.DefaultRiskFreeRate)
	v.SetDefault("backtest.vol_window", 20)
	v.SetDefault("backtest.buffer_days", engine.DefaultBufferDays)

	v.SetDefault("data.provider", "synthetic")
	v.SetDefault("data.api_key", "")
	v.SetDefault("data.base_url", data.DefaultMassiveBaseURL)
	v.SetDefault("data.csv_dir", "")
	v.SetDefault("data.seed", 1)
	v.SetDefault("data.live_quotes", false)

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")

	v.SetDefault("log.verbosity", 1)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("report_dir", "")
}

// Load reads path (when set) into v and decodes the result. The provider
// API key falls back to MASSIVE_API_KEY, then POLYGON_API_KEY.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if cfg.Data.APIKey == "" {
		cfg.Data.APIKey = os.Getenv("MASSIVE_API_KEY")
	}
	if cfg.Data.APIKey == "" {
		cfg.Data.APIKey = os.Getenv("POLYGON_API_KEY")
	}
	return cfg, nil
}

// Validate checks the infrastructure sections. Run parameters are checked
// by BacktestConfig.Simulation.
func (c *Config) Validate() error {
	switch c.Data.Provider {
	case "synthetic":
	case "massive":
		if c.Data.APIKey == "" {
			return fmt.Errorf("%w: data.api_key (or MASSIVE_API_KEY) is required for the massive provider", ErrConfigInvalid)
		}
	case "csv":
		if c.Data.CSVDir == "" {
			return fmt.Errorf("%w: data.csv_dir is required for the csv provider", ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: invalid data.provider: %s (must be 'synthetic', 'massive' or 'csv')", ErrConfigInvalid, c.Data.Provider)
	}

	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for the postgres driver", ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: invalid store.driver: %s (must be 'memory', 'sqlite' or 'postgres')", ErrConfigInvalid, c.Store.Driver)
	}

	if c.Log.Verbosity < 0 || c.Log.Verbosity > 3 {
		return fmt.Errorf("%w: log.verbosity must be between 0 and 3", ErrConfigInvalid)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must be non-negative", ErrConfigInvalid)
	}
	if c.Backtest.VolWindow < 1 {
		return fmt.Errorf("%w: backtest.vol_window must be positive", ErrConfigInvalid)
	}
	if c.Backtest.BufferDays < 0 {
		return fmt.Errorf("%w: backtest.buffer_days must be non-negative", ErrConfigInvalid)
	}
	return nil
}

// Simulation converts the run parameters into an engine config. Unlike the
// engine, it requires end strictly after start.
func (b BacktestConfig) Simulation() (engine.SimulationConfig, error) {
	var sim engine.SimulationConfig

	start, err := time.Parse(data.DateLayout, b.Start)
	if err != nil {
		return sim, fmt.Errorf("%w: start date %q must be YYYY-MM-DD", ErrConfigInvalid, b.Start)
	}
	end, err := time.Parse(data.DateLayout, b.End)
	if err != nil {
		return sim, fmt.Errorf("%w: end date %q must be YYYY-MM-DD", ErrConfigInvalid, b.End)
	}
	if !end.After(start) {
		return sim, fmt.Errorf("%w: end date must be after start date", ErrConfigInvalid)
	}
	capital, err := decimal.NewFromString(strings.TrimSpace(b.StartingCapital))
	if err != nil {
		return sim, fmt.Errorf("%w: starting capital %q is not a number", ErrConfigInvalid, b.StartingCapital)
	}

	sim = engine.SimulationConfig{
		Ticker:          strings.ToUpper(strings.TrimSpace(b.Ticker)),
		StrikePct:       b.StrikePct,
		Start:           start,
		End:             end,
		StartingCapital: capital,
	}
	if err := sim.Validate(); err != nil {
		return engine.SimulationConfig{}, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return sim, nil
}

// EngineOptions returns the engine tuning options of b.
func (b BacktestConfig) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithRiskFreeRate(b.RiskFreeRate),
		engine.WithVolWindow(b.VolWindow),
		engine.WithBufferDays(b.BufferDays),
		engine.WithStrikeRule(b.StrikeRule),
	}
}
