package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// createdLayout sorts lexically in time order.
const createdLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "option-wheel.db"
	}
	db, err := sql.Open("sqlite3", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		ticker TEXT NOT NULL,
		config TEXT NOT NULL,
		ledger TEXT NOT NULL,
		summary TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, run *Run) error {
	c, err := encodeRun(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, ticker, config, ledger, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(createdLayout), run.Config.Ticker,
		string(c.config), string(c.ledger), string(c.summary),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	var created, config, ledger, summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, config, ledger, summary FROM runs WHERE id = ?`, id).
		Scan(&id, &created, &config, &ledger, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	run := &Run{ID: id}
	if run.CreatedAt, err = time.Parse(createdLayout, created); err != nil {
		return nil, fmt.Errorf("get run %s: bad created_at: %w", id, err)
	}
	if err := decodeRun(run, columns{config: []byte(config), ledger: []byte(ledger), summary: []byte(summary)}); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, config, summary FROM runs ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var created, config, summary string
		if err := rows.Scan(&run.ID, &created, &config, &summary); err != nil {
			return nil, err
		}
		if run.CreatedAt, err = time.Parse(createdLayout, created); err != nil {
			return nil, fmt.Errorf("list runs: bad created_at for %s: %w", run.ID, err)
		}
		if err := decodeRun(&run, columns{config: []byte(config), summary: []byte(summary)}); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteDSN appends the WAL and busy-timeout options, keeping any query
// parameters already present on a file: URI.
func sqliteDSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_journal_mode=WAL&_busy_timeout=5000"
}
