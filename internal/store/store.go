// Package store persists finished backtest runs. Implementations include
// in-memory (tests and one-off serving), SQLite (local file) and
// PostgreSQL (shared deployments).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contactkeval/option-wheel/internal/backtest/engine"
)

// ErrNotFound reports an unknown run id.
var ErrNotFound = errors.New("run not found")

// Run is one persisted backtest.
type Run struct {
	ID        string                  `json:"id"`
	CreatedAt time.Time               `json:"created_at"`
	Config    engine.SimulationConfig `json:"config"`
	Ledger    []engine.Action         `json:"ledger,omitempty"`
	Summary   engine.Summary          `json:"summary"`
}

// NewRun wraps a finished result with a fresh id.
func NewRun(cfg engine.SimulationConfig, res *engine.Result) *Run {
	return &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Config:    cfg,
		Ledger:    res.Ledger,
		Summary:   res.Summary,
	}
}

// Store is the persistence interface.
type Store interface {
	// Save persists a run. Saving an existing id fails.
	Save(ctx context.Context, run *Run) error

	// Get returns the full run, ledger included, or ErrNotFound.
	Get(ctx context.Context, id string) (*Run, error)

	// List returns all runs newest first, without their ledgers.
	List(ctx context.Context) ([]Run, error)

	Close() error
}

// Open returns the store for driver: "memory", "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteStore(dsn)
	case "postgres", "postgresql":
		return OpenPostgresStore(ctx, dsn)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

// columns is the JSON-encoded payload shared by the SQL backends.
type columns struct {
	config  []byte
	ledger  []byte
	summary []byte
}

func encodeRun(run *Run) (columns, error) {
	var c columns
	var err error
	if c.config, err = json.Marshal(run.Config); err != nil {
		return c, fmt.Errorf("encode config: %w", err)
	}
	ledger := run.Ledger
	if ledger == nil {
		ledger = []engine.Action{}
	}
	if c.ledger, err = json.Marshal(ledger); err != nil {
		return c, fmt.Errorf("encode ledger: %w", err)
	}
	if c.summary, err = json.Marshal(run.Summary); err != nil {
		return c, fmt.Errorf("encode summary: %w", err)
	}
	return c, nil
}

func decodeRun(run *Run, c columns) error {
	if err := json.Unmarshal(c.config, &run.Config); err != nil {
		return fmt.Errorf("decode config of run %s: %w", run.ID, err)
	}
	if c.ledger != nil {
		if err := json.Unmarshal(c.ledger, &run.Ledger); err != nil {
			return fmt.Errorf("decode ledger of run %s: %w", run.ID, err)
		}
	}
	if err := json.Unmarshal(c.summary, &run.Summary); err != nil {
		return fmt.Errorf("decode summary of run %s: %w", run.ID, err)
	}
	return nil
}
