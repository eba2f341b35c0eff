package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contactkeval/option-wheel/internal/backtest/engine"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MASSIVE_API_KEY", "")
	t.Setenv("POLYGON_API_KEY", "")

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Data.Provider != "synthetic" || cfg.Store.Driver != "memory" || cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Backtest.StrikePct != 0.95 || cfg.Backtest.VolWindow != 20 || cfg.Backtest.BufferDays != 60 {
		t.Fatalf("unexpected backtest defaults %+v", cfg.Backtest)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Fatalf("unexpected cache ttl %v", cfg.Cache.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wheel.yaml")
	content := `
backtest:
  ticker: aapl
  strike_pct: 0.9
  start: "2024-01-01"
  end: "2024-06-30"
  starting_capital: 25000
data:
  provider: csv
  csv_dir: /tmp/bars
store:
  driver: sqlite
  dsn: runs.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("WHEEL_BACKTEST_STRIKE_PCT", "0.97")
	t.Setenv("WHEEL_LOG_VERBOSITY", "3")
	t.Setenv("POLYGON_API_KEY", "poly-key")
	t.Setenv("MASSIVE_API_KEY", "")

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backtest.Ticker != "aapl" || cfg.Backtest.StartingCapital != "25000" || cfg.Data.CSVDir != "/tmp/bars" {
		t.Fatalf("file values not loaded: %+v", cfg)
	}
	if cfg.Backtest.StrikePct != 0.97 || cfg.Log.Verbosity != 3 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Data.APIKey != "poly-key" {
		t.Fatalf("expected api key from POLYGON_API_KEY, got %q", cfg.Data.APIKey)
	}

	sim, err := cfg.Backtest.Simulation()
	if err != nil {
		t.Fatalf("unexpected simulation error: %v", err)
	}
	if sim.Ticker != "AAPL" || sim.StrikePct != 0.97 || sim.StartingCapital.String() != "25000" {
		t.Fatalf("unexpected simulation config %+v", sim)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Data.Provider = "yahoo" }},
		{"massive without key", func(c *Config) { c.Data.Provider = "massive"; c.Data.APIKey = "" }},
		{"csv without dir", func(c *Config) { c.Data.Provider = "csv" }},
		{"unknown store", func(c *Config) { c.Store.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }},
		{"verbosity too high", func(c *Config) { c.Log.Verbosity = 4 }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
		{"zero vol window", func(c *Config) { c.Backtest.VolWindow = 0 }},
		{"negative buffer", func(c *Config) { c.Backtest.BufferDays = -1 }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := Load(New(), "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			test.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestSimulation_Errors(t *testing.T) {
	valid := BacktestConfig{Ticker: "SPY", StrikePct: 0.95, Start: "2024-01-01", End: "2024-02-01", StartingCapital: "100000"}
	tests := []struct {
		name      string
		mutate    func(*BacktestConfig)
		engineErr bool
	}{
		{"bad start", func(b *BacktestConfig) { b.Start = "01/01/2024" }, false},
		{"bad end", func(b *BacktestConfig) { b.End = "" }, false},
		{"end equals start", func(b *BacktestConfig) { b.End = b.Start }, false},
		{"end before start", func(b *BacktestConfig) { b.End = "2023-12-31" }, false},
		{"bad capital", func(b *BacktestConfig) { b.StartingCapital = "lots" }, false},
		{"empty ticker", func(b *BacktestConfig) { b.Ticker = "" }, true},
		{"pct out of range", func(b *BacktestConfig) { b.StrikePct = 1.5 }, true},
		{"zero capital", func(b *BacktestConfig) { b.StartingCapital = "0" }, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := valid
			test.mutate(&b)
			_, err := b.Simulation()
			if !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
			if test.engineErr != errors.Is(err, engine.ErrInvalidConfig) {
				t.Fatalf("engine error wrapping mismatch for %v", err)
			}
		})
	}
}
