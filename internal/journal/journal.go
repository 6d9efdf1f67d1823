// Package journal persists a local history of processed jobs backed by
// SQLite. The control plane remains the source of truth; the journal exists
// so an operator can inspect a worker's recent activity on the box itself.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Job statuses recorded in the journal.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Record is one job's row in the journal.
type Record struct {
	ID            int64
	JobID         string
	ContentItemID string
	Status        string
	Stage         string
	Message       string
	ManifestURL   string
	ErrorMessage  string
	StartedAt     time.Time
	UpdatedAt     time.Time
}

// Store manages journal persistence.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database under dir and applies
// migrations.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}
	dbPath := filepath.Join(dir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the journal database.
func (s *Store) Path() string {
	return s.path
}

// Begin records a freshly claimed job. Re-claiming a job id that already has
// a row resets it back to processing.
func (s *Store) Begin(ctx context.Context, jobID, contentItemID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (job_id, content_item_id, status, stage, started_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET
           status = excluded.status,
           stage = excluded.stage,
           message = '',
           manifest_url = '',
           error_message = '',
           updated_at = excluded.updated_at`,
		jobID, contentItemID, StatusProcessing, "claimed", now, now,
	)
	if err != nil {
		return fmt.Errorf("record job start: %w", err)
	}
	return nil
}

// UpdateStage records the current lifecycle stage for a job.
func (s *Store) UpdateStage(ctx context.Context, jobID, stage, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET stage = ?, message = ?, updated_at = ? WHERE job_id = ?`,
		stage, message, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("record stage: %w", err)
	}
	return nil
}

// MarkComplete finalizes a job as successful.
func (s *Store) MarkComplete(ctx context.Context, jobID, manifestURL string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stage = 'complete', manifest_url = ?, updated_at = ? WHERE job_id = ?`,
		StatusComplete, manifestURL, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// MarkFailed finalizes a job as failed with its error message.
func (s *Store) MarkFailed(ctx context.Context, jobID, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, stage = 'failed', error_message = ?, updated_at = ? WHERE job_id = ?`,
		StatusFailed, errorMessage, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// GetByJobID returns one record, or nil when the journal has no row for the
// job.
func (s *Store) GetByJobID(ctx context.Context, jobID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, content_item_id, status, stage, message, manifest_url, error_message, started_at, updated_at
         FROM jobs WHERE job_id = ?`, jobID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return record, nil
}

// Recent returns the most recently updated records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, content_item_id, status, stage, message, manifest_url, error_message, started_at, updated_at
         FROM jobs ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var startedAt, updatedAt string
	err := row.Scan(
		&record.ID,
		&record.JobID,
		&record.ContentItemID,
		&record.Status,
		&record.Stage,
		&record.Message,
		&record.ManifestURL,
		&record.ErrorMessage,
		&startedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.StartedAt = parseTimestamp(startedAt)
	record.UpdatedAt = parseTimestamp(updatedAt)
	return &record, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
