package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on PostgreSQL. Config, ledger and summary
// are JSONB columns so money keeps its exact decimal text.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The caller owns the schema; see
// Migrate.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgresStore connects to dsn and ensures the schema exists.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the runs table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			ticker     TEXT NOT NULL,
			config     JSONB NOT NULL,
			ledger     JSONB NOT NULL,
			summary    JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at DESC)`)
	if err != nil {
		return fmt.Errorf("migrate runs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, run *Run) error {
	c, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, created_at, ticker, config, ledger, summary)
		 VALUES ($1, $2, $3, $4::JSONB, $5::JSONB, $6::JSONB)`,
		run.ID, run.CreatedAt, run.Config.Ticker,
		string(c.config), string(c.ledger), string(c.summary),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	var c columns
	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, config::TEXT, ledger::TEXT, summary::TEXT FROM runs WHERE id = $1`, id).
		Scan(&run.ID, &run.CreatedAt, &c.config, &c.ledger, &c.summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run.CreatedAt = run.CreatedAt.UTC()
	if err := decodeRun(run, c); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, config::TEXT, summary::TEXT FROM runs ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var c columns
		if err := rows.Scan(&run.ID, &run.CreatedAt, &c.config, &c.summary); err != nil {
			return nil, err
		}
		run.CreatedAt = run.CreatedAt.UTC()
		if err := decodeRun(&run, c); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
