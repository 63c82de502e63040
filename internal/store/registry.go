// Package store persists run bookkeeping for the adapter processes: which
// runs happened, their endpoints and lifetimes, and the resource samples
// collected while they ran.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,       -- 'hub' or 'simulator'
    direction TEXT,           -- hub runs only
    pid INTEGER NOT NULL,
    status TEXT NOT NULL,     -- 'running', 'completed', 'failed'
    started_at TEXT NOT NULL,
    stopped_at TEXT
);

CREATE TABLE IF NOT EXISTS resource_samples (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    sampled_at TEXT NOT NULL,
    cpu_seconds REAL NOT NULL,
    rss_bytes INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_run ON resource_samples(run_id);
`

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded adapter process.
type Run struct {
	ID        string
	Kind      string
	Direction string
	PID       int
	Status    string
	StartedAt time.Time
	StoppedAt *time.Time
}

// Sample is one resource usage observation for a run.
type Sample struct {
	RunID      string
	SampledAt  time.Time
	CPUSeconds float64
	RSSBytes   int64
}

// Registry is the SQLite-backed run registry. Safe for concurrent use
// within one process; SQLite works best with a single writer, so the
// connection pool is capped at one.
type Registry struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the registry database at path.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// RecordStart inserts a run in the running state.
func (r *Registry) RecordStart(ctx context.Context, run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("store: run ID is required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, direction, pid, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Direction, run.PID, StatusRunning,
		run.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: record start of %s: %w", run.ID, err)
	}
	return nil
}

// RecordStop marks a run stopped with the given final status.
func (r *Registry) RecordStop(ctx context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stopped_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("store: record stop of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("store: unknown run: %s", id)
	}
	return nil
}

// GetRun returns one run, or nil if it does not exist.
func (r *Registry) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, direction, pid, status, started_at, stopped_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns all runs, newest first.
func (r *Registry) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, direction, pid, status, started_at, stopped_at FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var direction sql.NullString
	var started string
	var stopped sql.NullString
	if err := row.Scan(&run.ID, &run.Kind, &direction, &run.PID, &run.Status, &started, &stopped); err != nil {
		return Run{}, err
	}
	run.Direction = direction.String
	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		run.StartedAt = t
	}
	if stopped.Valid {
		if t, err := time.Parse(time.RFC3339Nano, stopped.String); err == nil {
			run.StoppedAt = &t
		}
	}
	return run, nil
}

// AddSample appends one resource usage sample.
func (r *Registry) AddSample(ctx context.Context, s Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resource_samples (run_id, sampled_at, cpu_seconds, rss_bytes) VALUES (?, ?, ?, ?)`,
		s.RunID, s.SampledAt.UTC().Format(time.RFC3339Nano), s.CPUSeconds, s.RSSBytes)
	if err != nil {
		return fmt.Errorf("store: add sample for %s: %w", s.RunID, err)
	}
	return nil
}

// Samples returns the samples of a run in collection order.
func (r *Registry) Samples(ctx context.Context, runID string) ([]Sample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, sampled_at, cpu_seconds, rss_bytes FROM resource_samples WHERE run_id = ? ORDER BY sampled_at`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("store: samples of %s: %w", runID, err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var at string
		if err := rows.Scan(&s.RunID, &at, &s.CPUSeconds, &s.RSSBytes); err != nil {
			return nil, fmt.Errorf("store: scan sample: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			s.SampledAt = t
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
