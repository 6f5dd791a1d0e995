// Package sqlite persists review state and run history in a local
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store holds serialized review state keyed by commit, plus a log of
// completed runs.
type Store struct {
	db *sql.DB
}

// RunRecord is one row of run history.
type RunRecord struct {
	CommitID       string
	BaseRef        string
	TargetRef      string
	CompletedFiles int
	FailedFiles    int
	SkippedFiles   int
	CommentsPosted int
	CreatedAt      time.Time
}

// NewStore opens (or creates) the database at dbPath. Use ":memory:"
// for tests.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
	-- Serialized state for in-flight and finished reviews, one row per commit.
	CREATE TABLE IF NOT EXISTS review_state (
		commit_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	-- One row per completed run, for reporting.
	CREATE TABLE IF NOT EXISTS run_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		commit_id TEXT NOT NULL,
		base_ref TEXT NOT NULL,
		target_ref TEXT NOT NULL,
		completed_files INTEGER NOT NULL,
		failed_files INTEGER NOT NULL,
		skipped_files INTEGER NOT NULL,
		comments_posted INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_run_history_created ON run_history(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load returns the stored state blob for a commit. A commit with no
// stored state returns an empty string, not an error.
func (s *Store) Load(ctx context.Context, commitID string) (string, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM review_state WHERE commit_id = ?`, commitID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load review state: %w", err)
	}
	return blob, nil
}

// Save upserts the state blob for a commit.
func (s *Store) Save(ctx context.Context, commitID, blob string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_state (commit_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(commit_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, commitID, blob, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save review state: %w", err)
	}
	return nil
}

// RecordRun appends a run outcome to the history log.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_history
			(commit_id, base_ref, target_ref, completed_files, failed_files, skipped_files, comments_posted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.CommitID, rec.BaseRef, rec.TargetRef,
		rec.CompletedFiles, rec.FailedFiles, rec.SkippedFiles, rec.CommentsPosted,
		createdAt.Unix())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest run records, most recent first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT commit_id, base_ref, target_ref, completed_files, failed_files, skipped_files, comments_posted, created_at
		FROM run_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var createdAt int64
		if err := rows.Scan(&rec.CommitID, &rec.BaseRef, &rec.TargetRef,
			&rec.CompletedFiles, &rec.FailedFiles, &rec.SkippedFiles,
			&rec.CommentsPosted, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run history: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run history: %w", err)
	}
	return records, nil
}
