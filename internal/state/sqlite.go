package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores cursors in a local single-file database, sharing the
// file with the SQLite loader for offline runs.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil { return nil, err }
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS etl_cursors (
		scope_name TEXT PRIMARY KEY,
		last_updated_at TEXT,
		last_issue_key TEXT,
		resume_page_at INTEGER DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Load(ctx context.Context, scope string) (Cursor, error) {
	var updatedAt, issueKey sql.NullString
	var resumeAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_updated_at, last_issue_key, resume_page_at FROM etl_cursors WHERE scope_name = ?`,
		scope).Scan(&updatedAt, &issueKey, &resumeAt)
	if errors.Is(err, sql.ErrNoRows) { return Cursor{}, nil }
	if err != nil { return Cursor{}, err }
	var c Cursor
	if updatedAt.Valid && updatedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, updatedAt.String)
		if err != nil { return Cursor{}, err }
		c.LastUpdatedAt = t
	}
	if issueKey.Valid { c.LastIssueKey = issueKey.String }
	if resumeAt.Valid { c.ResumePageAt = int(resumeAt.Int64) }
	return c, nil
}

func (s *SQLite) Save(ctx context.Context, scope string, cursor Cursor) error {
	var updatedAt any
	if !cursor.LastUpdatedAt.IsZero() { updatedAt = cursor.LastUpdatedAt.Format(time.RFC3339Nano) }
	var issueKey any
	if cursor.LastIssueKey != "" { issueKey = cursor.LastIssueKey }
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO etl_cursors (scope_name, last_updated_at, last_issue_key, resume_page_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope_name) DO UPDATE SET
			last_updated_at = excluded.last_updated_at,
			last_issue_key = excluded.last_issue_key,
			resume_page_at = excluded.resume_page_at`,
		scope, updatedAt, issueKey, cursor.ResumePageAt)
	return err
}
