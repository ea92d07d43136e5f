// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog maintains an advisory index of the recordings on
// disk. Playback never depends on it; the catalog answers listing
// queries and feeds the session gauge.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Entry is one indexed recording session.
type Entry struct {
	SessionID       string    `json:"sessionId"`
	StartTime       int64     `json:"startTime"`
	DurationSeconds int64     `json:"durationSeconds"`
	FileCount       int       `json:"fileCount"`
	FirstFile       string    `json:"firstFile"`
	Kind            string    `json:"kind"`
	IndexedAt       time.Time `json:"indexedAt"`
}

// Store provides SQLite persistence for the recording index.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the catalog database and runs migrations.
// WAL mode + busy_timeout suit the read-heavy listing workload.
func NewStore(dbPath string) (*Store, error) {
	// busy_timeout avoids "database locked" errors
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recordings (
		session_id TEXT PRIMARY KEY,
		start_time INTEGER NOT NULL DEFAULT 0,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		file_count INTEGER NOT NULL DEFAULT 0,
		first_file TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT 'unknown',
		indexed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recordings_start_time ON recordings(start_time);
	`

	_, err := s.db.Exec(schema)
	return err
}

// BeginTx starts a transaction for one scan pass.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Upsert inserts or updates one entry.
// Used within TX during scan.
func (s *Store) Upsert(ctx context.Context, tx *sql.Tx, e Entry) error {
	query := `
	INSERT INTO recordings (session_id, start_time, duration_seconds, file_count, first_file, kind, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		start_time = excluded.start_time,
		duration_seconds = excluded.duration_seconds,
		file_count = excluded.file_count,
		first_file = excluded.first_file,
		kind = excluded.kind,
		indexed_at = excluded.indexed_at
	`

	_, err := tx.ExecContext(ctx, query,
		e.SessionID,
		e.StartTime,
		e.DurationSeconds,
		e.FileCount,
		e.FirstFile,
		e.Kind,
		e.IndexedAt.Format(time.RFC3339),
	)
	return err
}

// Delete removes one entry.
// Used within TX during scan.
func (s *Store) Delete(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM recordings WHERE session_id = ?`, sessionID)
	return err
}

// SessionIDs returns every indexed session ID within a scan transaction.
func (s *Store) SessionIDs(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT session_id FROM recordings`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get retrieves a single entry by session ID.
func (s *Store) Get(ctx context.Context, sessionID string) (*Entry, error) {
	query := `
	SELECT session_id, start_time, duration_seconds, file_count, first_file, kind, indexed_at
	FROM recordings
	WHERE session_id = ?
	`

	var e Entry
	var indexedAtStr string

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&e.SessionID, &e.StartTime, &e.DurationSeconds, &e.FileCount, &e.FirstFile, &e.Kind, &indexedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	e.IndexedAt, _ = time.Parse(time.RFC3339, indexedAtStr)
	return &e, nil
}

// List retrieves paginated entries, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	// Get total count
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Get paginated entries
	query := `
	SELECT session_id, start_time, duration_seconds, file_count, first_file, kind, indexed_at
	FROM recordings
	ORDER BY start_time DESC, session_id
	LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var indexedAtStr string

		if err := rows.Scan(
			&e.SessionID, &e.StartTime, &e.DurationSeconds, &e.FileCount, &e.FirstFile, &e.Kind, &indexedAtStr,
		); err != nil {
			return nil, 0, err
		}

		e.IndexedAt, _ = time.Parse(time.RFC3339, indexedAtStr)
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}

// Count returns the number of indexed sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&total)
	return total, err
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
