package state

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps cursors in the etl_cursors table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	s := &Postgres{pool: pool}
	if err := s.ensureTable(ctx); err != nil { return nil, err }
	return s, nil
}

func (s *Postgres) ensureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS etl_cursors (
		scope_name TEXT PRIMARY KEY,
		last_updated_at TIMESTAMPTZ,
		last_issue_key TEXT,
		resume_page_at INTEGER DEFAULT 0
	)`)
	return err
}

func (s *Postgres) Load(ctx context.Context, scope string) (Cursor, error) {
	var updatedAt *time.Time
	var issueKey *string
	var resumeAt *int
	err := s.pool.QueryRow(ctx,
		`SELECT last_updated_at, last_issue_key, resume_page_at FROM etl_cursors WHERE scope_name = $1`,
		scope).Scan(&updatedAt, &issueKey, &resumeAt)
	if errors.Is(err, pgx.ErrNoRows) { return Cursor{}, nil }
	if err != nil { return Cursor{}, err }
	var c Cursor
	if updatedAt != nil { c.LastUpdatedAt = *updatedAt }
	if issueKey != nil { c.LastIssueKey = *issueKey }
	if resumeAt != nil { c.ResumePageAt = *resumeAt }
	return c, nil
}

func (s *Postgres) Save(ctx context.Context, scope string, cursor Cursor) error {
	var updatedAt any
	if !cursor.LastUpdatedAt.IsZero() { updatedAt = cursor.LastUpdatedAt }
	var issueKey any
	if cursor.LastIssueKey != "" { issueKey = cursor.LastIssueKey }
	_, err := s.pool.Exec(ctx,
		`INSERT INTO etl_cursors (scope_name, last_updated_at, last_issue_key, resume_page_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (scope_name) DO UPDATE SET
			last_updated_at = EXCLUDED.last_updated_at,
			last_issue_key = EXCLUDED.last_issue_key,
			resume_page_at = EXCLUDED.resume_page_at`,
		scope, updatedAt, issueKey, cursor.ResumePageAt)
	return err
}
