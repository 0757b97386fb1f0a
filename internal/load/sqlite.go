package load

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RodeFRode/jira-extraction/internal/transform"
	_ "modernc.org/sqlite"
)

// SQLite persists whole issue transforms as JSON payloads in a local
// single-file database. It exists for offline runs and tests; the
// relational schema lives in the Postgres warehouse only.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil { return nil, err }
	}
	db, err := sql.Open("sqlite", path)
	if err != nil { return nil, err }
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS issue_transforms (
		issue_id INTEGER PRIMARY KEY,
		issue_key TEXT,
		payload TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS ix_issue_transforms_issue_key ON issue_transforms(issue_key)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) LoadPage(ctx context.Context, transforms []transform.IssueTransform) (Stats, error) {
	var stats Stats
	if len(transforms) == 0 { return stats, nil }
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil { return stats, err }
	defer tx.Rollback()
	for _, t := range transforms {
		if t.Issue.IssueID == 0 {
			return Stats{}, fmt.Errorf("load: issue transform %s is missing an issue id", t.Issue.IssueKey)
		}
		payload, err := json.Marshal(t)
		if err != nil { return Stats{}, err }
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO issue_transforms (issue_id, issue_key, payload) VALUES (?, ?, ?)`,
			t.Issue.IssueID, t.Issue.IssueKey, string(payload)); err != nil {
			return Stats{}, err
		}
		stats.Issues++
		stats.Links += len(t.Links)
		stats.Changes += len(t.Changes)
	}
	if err := tx.Commit(); err != nil { return Stats{}, err }
	return stats, nil
}
