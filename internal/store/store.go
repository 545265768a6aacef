// Package store persists evaluation runs in SQLite so past accuracy and
// per-instance history survive across invocations.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the run-results database.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open initializes the database at path, creating directories and the
// schema as needed. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal_mode: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			dataset_path TEXT NOT NULL,
			patch_path TEXT NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			resolved INTEGER NOT NULL DEFAULT 0,
			accuracy REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS instance_results (
			run_id TEXT NOT NULL,
			instance_id TEXT NOT NULL,
			prefix TEXT NOT NULL DEFAULT '',
			resolved INTEGER NOT NULL,
			cached INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, instance_id),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_instance_results_instance
			ON instance_results(instance_id)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Run is one recorded evaluation run.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	DatasetPath string
	PatchPath   string
	Total       int
	Resolved    int
	Accuracy    float64
}

// InstanceRecord is one instance outcome within a run.
type InstanceRecord struct {
	RunID      string
	InstanceID string
	Prefix     string
	Resolved   bool
	Cached     bool
	Error      string
	Duration   time.Duration
}

// BeginRun records the start of an evaluation run.
func (s *Store) BeginRun(id, datasetPath, patchPath string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, dataset_path, patch_path) VALUES (?, ?, ?, ?)`,
		id, startedAt.UnixMilli(), datasetPath, patchPath)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun records the aggregate outcome of a run.
func (s *Store) FinishRun(id string, finishedAt time.Time, total, resolved int, accuracy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, total = ?, resolved = ?, accuracy = ? WHERE id = ?`,
		finishedAt.UnixMilli(), total, resolved, accuracy, id)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown run %q", id)
	}
	return nil
}

// RecordInstance stores one instance outcome. Re-recording the same
// (run, instance) pair overwrites the previous row.
func (s *Store) RecordInstance(rec InstanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO instance_results
			(run_id, instance_id, prefix, resolved, cached, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.InstanceID, rec.Prefix,
		boolInt(rec.Resolved), boolInt(rec.Cached), rec.Error,
		rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record instance result: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, started_at, COALESCE(finished_at, 0), dataset_path, patch_path,
			total, resolved, accuracy
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished int64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.DatasetPath, &r.PatchPath,
			&r.Total, &r.Resolved, &r.Accuracy); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		if finished > 0 {
			r.FinishedAt = time.UnixMilli(finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunResults returns the instance outcomes of a run, unresolved first so
// failures surface at the top of listings.
func (s *Store) RunResults(runID string) ([]InstanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT run_id, instance_id, prefix, resolved, cached, error, duration_ms
		FROM instance_results WHERE run_id = ?
		ORDER BY resolved ASC, instance_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// InstanceHistory returns every recorded outcome for an instance across
// runs, newest run first.
func (s *Store) InstanceHistory(instanceID string) ([]InstanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT ir.run_id, ir.instance_id, ir.prefix, ir.resolved, ir.cached, ir.error, ir.duration_ms
		FROM instance_results ir
		JOIN runs r ON r.id = ir.run_id
		WHERE ir.instance_id = ?
		ORDER BY r.started_at DESC`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query instance history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]InstanceRecord, error) {
	var records []InstanceRecord
	for rows.Next() {
		var (
			rec        InstanceRecord
			resolved   int
			cached     int
			durationMs int64
		)
		if err := rows.Scan(&rec.RunID, &rec.InstanceID, &rec.Prefix,
			&resolved, &cached, &rec.Error, &durationMs); err != nil {
			return nil, err
		}
		rec.Resolved = resolved != 0
		rec.Cached = cached != 0
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
