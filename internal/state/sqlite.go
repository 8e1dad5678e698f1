package state

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.NewError(errors.CategoryNotFound, "run not found").Build()

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeError(err, "failed to open run history")
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, storeError(err, "failed to initialize run history schema")
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		repositories INTEGER NOT NULL DEFAULT 0,
		files INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE TABLE IF NOT EXISTS run_files (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		repository TEXT NOT NULL,
		path TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		PRIMARY KEY (run_id, repository, path)
	);
	CREATE INDEX IF NOT EXISTS idx_run_files_path ON run_files(repository, path);
	CREATE TABLE IF NOT EXISTS broken_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		repository TEXT NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_broken_run ON broken_links(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// StartRun records a run in the running state.
func (s *Store) StartRun(ctx context.Context, id string, started time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)",
		id, started.UnixMilli(), string(StatusRunning))
	if err != nil {
		return storeError(err, "failed to insert run")
	}
	return nil
}

// SaveReport stores the final state of a run, replacing whatever was
// recorded for its id before.
func (s *Store) SaveReport(ctx context.Context, d RunDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var finished int64
	if !d.FinishedAt.IsZero() {
		finished = d.FinishedAt.UnixMilli()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, status, repositories, files, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			status = excluded.status,
			repositories = excluded.repositories,
			files = excluded.files,
			error = excluded.error`,
		d.ID, d.StartedAt.UnixMilli(), finished, string(d.Status), d.Repositories, d.Run.Files, d.Error,
	); err != nil {
		return storeError(err, "failed to upsert run")
	}
	for _, stmt := range []string{
		"DELETE FROM run_files WHERE run_id = ?",
		"DELETE FROM broken_links WHERE run_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, d.ID); err != nil {
			return storeError(err, "failed to clear run details")
		}
	}

	for _, f := range d.Files {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_files (run_id, repository, path, fingerprint) VALUES (?, ?, ?, ?)",
			d.ID, f.Repository, f.Path, f.Fingerprint); err != nil {
			return storeError(err, "failed to insert run file")
		}
	}
	for _, b := range d.Broken {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO broken_links (run_id, repository, source, target) VALUES (?, ?, ?, ?)",
			d.ID, b.Repository, b.Source, b.Target); err != nil {
			return storeError(err, "failed to insert broken link")
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError(err, "failed to commit run report")
	}
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, finished_at, status, repositories, files, error FROM runs ORDER BY started_at DESC, id LIMIT ?",
		limit)
	if err != nil {
		return nil, storeError(err, "failed to query runs")
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "failed to iterate runs")
	}
	return runs, nil
}

// GetRun returns a run with its files and broken links.
func (s *Store) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, started_at, finished_at, status, repositories, files, error FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	d := &RunDetail{Run: run}
	if d.Files, err = s.runFiles(ctx, id); err != nil {
		return nil, err
	}
	if d.Broken, err = s.brokenLinks(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) runFiles(ctx context.Context, id string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT repository, path, fingerprint FROM run_files WHERE run_id = ? ORDER BY repository, path", id)
	if err != nil {
		return nil, storeError(err, "failed to query run files")
	}
	defer func() { _ = rows.Close() }()

	var out []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Repository, &f.Path, &f.Fingerprint); err != nil {
			return nil, storeError(err, "failed to scan run file")
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "failed to iterate run files")
	}
	return out, nil
}

func (s *Store) brokenLinks(ctx context.Context, id string) ([]BrokenLink, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT repository, source, target FROM broken_links WHERE run_id = ? ORDER BY id", id)
	if err != nil {
		return nil, storeError(err, "failed to query broken links")
	}
	defer func() { _ = rows.Close() }()

	var out []BrokenLink
	for rows.Next() {
		var b BrokenLink
		if err := rows.Scan(&b.Repository, &b.Source, &b.Target); err != nil {
			return nil, storeError(err, "failed to scan broken link")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "failed to iterate broken links")
	}
	return out, nil
}

// LatestFingerprint returns the fingerprint recorded for repository/path by
// the most recent run that published it, or "" when none did.
func (s *Store) LatestFingerprint(ctx context.Context, repository, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fp string
	err := s.db.QueryRowContext(ctx, `
		SELECT f.fingerprint FROM run_files f JOIN runs r ON r.id = f.run_id
		WHERE f.repository = ? AND f.path = ?
		ORDER BY r.started_at DESC LIMIT 1`, repository, path).Scan(&fp)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storeError(err, "failed to query fingerprint")
	}
	return fp, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r        Run
		started  int64
		finished int64
		status   string
	)
	if err := sc.Scan(&r.ID, &started, &finished, &status, &r.Repositories, &r.Files, &r.Error); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, storeError(err, "failed to scan run")
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	if finished > 0 {
		r.FinishedAt = time.UnixMilli(finished).UTC()
	}
	r.Status = Status(status)
	return r, nil
}

func storeError(err error, msg string) error {
	return errors.WrapError(err, errors.CategoryEventStore, msg).Build()
}
