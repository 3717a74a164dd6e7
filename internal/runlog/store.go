package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"captioner/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists run metadata in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Begin records a new running run.
func (s *Store) Begin(ctx context.Context, id string, source Source, filename string, stage string) error {
	now := formatTime(time.Now())
	return s.exec(ctx,
		`INSERT INTO runs (id, source, filename, status, stage, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(source), nullableString(filename), string(StatusRunning), stage, now, now,
	)
}

// SetStage records the stage a running run has reached.
func (s *Store) SetStage(ctx context.Context, id, stage string) error {
	return s.exec(ctx,
		`UPDATE runs SET stage = ?, updated_at = ? WHERE id = ? AND status = ?`,
		stage, formatTime(time.Now()), id, string(StatusRunning),
	)
}

// SetInputBytes records the persisted upload size.
func (s *Store) SetInputBytes(ctx context.Context, id string, size int64) error {
	return s.exec(ctx, `UPDATE runs SET input_bytes = ?, updated_at = ? WHERE id = ?`, size, formatTime(time.Now()), id)
}

// Succeed finalizes a run with its published URL.
func (s *Store) Succeed(ctx context.Context, id, videoURL string, segments int) error {
	now := formatTime(time.Now())
	return s.exec(ctx,
		`UPDATE runs SET status = ?, stage = ?, video_url = ?, segments = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		string(StatusSucceeded), "succeeded", videoURL, segments, now, now, id,
	)
}

// Fail finalizes a run with the first failure.
func (s *Store) Fail(ctx context.Context, id, stage, kind, message string) error {
	now := formatTime(time.Now())
	return s.exec(ctx,
		`UPDATE runs SET status = ?, failure_stage = ?, failure_kind = ?, failure_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		string(StatusFailed), stage, kind, nullableString(message), now, now, id,
	)
}

// RecordCleanup stores how many artifacts could not be removed.
func (s *Store) RecordCleanup(ctx context.Context, id string, failures int) error {
	return s.exec(ctx, `UPDATE runs SET cleanup_failures = ?, updated_at = ? WHERE id = ?`, failures, formatTime(time.Now()), id)
}

// MarkInterrupted fails runs left in the running state by a previous process.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, failure_stage = 'internal', failure_kind = 'internal',
                 failure_message = 'interrupted by restart', updated_at = ?, finished_at = ?
             WHERE status = ?`,
			string(StatusFailed), now, now, string(StatusRunning),
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return affected, nil
}

// Get fetches a run by ID. A missing run yields services.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "runlog", "get", "run "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first. Status filters when non-empty.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Stats counts runs per status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()
	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		switch Status(status) {
		case StatusRunning:
			stats.Running = count
		case StatusSucceeded:
			stats.Succeeded = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// Prune deletes finished runs older than maxAge.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-maxAge))
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE status != ? AND created_at < ?`, string(StatusRunning), cutoff)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return affected, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
