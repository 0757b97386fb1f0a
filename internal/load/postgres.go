package load

import (
	"context"
	"time"

	"github.com/RodeFRode/jira-extraction/internal/transform"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Postgres performs batched upserts into the warehouse schema. Each
// page is one transaction, and the write order is load-bearing:
// dimensions before facts, facts before link resolution.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, log zerolog.Logger) *Postgres {
	return &Postgres{pool: pool, log: log}
}

func (p *Postgres) LoadPage(ctx context.Context, transforms []transform.IssueTransform) (Stats, error) {
	var stats Stats
	if len(transforms) == 0 { return stats, nil }
	tx, err := p.pool.Begin(ctx)
	if err != nil { return stats, err }
	defer tx.Rollback(ctx)

	for _, t := range transforms {
		if err := upsertDimensions(ctx, tx, t); err != nil { return Stats{}, err }
	}
	for _, t := range transforms {
		if err := upsertIssue(ctx, tx, t); err != nil { return Stats{}, err }
		stats.Issues++
	}
	links, err := insertLinks(ctx, tx, transforms)
	if err != nil { return Stats{}, err }
	stats.Links = links
	changes, err := insertChanges(ctx, tx, transforms)
	if err != nil { return Stats{}, err }
	stats.Changes = changes

	if err := tx.Commit(ctx); err != nil { return Stats{}, err }
	return stats, nil
}

// upsertDimensions writes the reference rows the issue facts point at.
func upsertDimensions(ctx context.Context, tx pgx.Tx, t transform.IssueTransform) error {
	issue := t.Issue
	if issue.ProjectID != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO projects (project_id, project_key, name) VALUES ($1, $2, $3)
			 ON CONFLICT (project_id) DO UPDATE SET project_key = EXCLUDED.project_key, name = EXCLUDED.name`,
			*issue.ProjectID, issue.ProjectKey, issue.ProjectName); err != nil { return err }
	}
	if issue.IssueTypeID != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO issue_types (issue_type_id, name) VALUES ($1, $2)
			 ON CONFLICT (issue_type_id) DO UPDATE SET name = EXCLUDED.name`,
			*issue.IssueTypeID, issue.IssueTypeName); err != nil { return err }
	}
	if issue.PriorityID != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO priorities (priority_id, name) VALUES ($1, $2)
			 ON CONFLICT (priority_id) DO UPDATE SET name = EXCLUDED.name`,
			*issue.PriorityID, issue.PriorityName); err != nil { return err }
	}
	if issue.StatusID != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO statuses (status_id, name) VALUES ($1, $2)
			 ON CONFLICT (status_id) DO UPDATE SET name = EXCLUDED.name`,
			*issue.StatusID, issue.StatusName); err != nil { return err }
	}
	for _, c := range t.Components {
		if c.ComponentID == nil || c.ProjectID == nil { continue }
		if _, err := tx.Exec(ctx,
			`INSERT INTO components (component_id, project_id, name) VALUES ($1, $2, $3)
			 ON CONFLICT (component_id) DO UPDATE SET name = EXCLUDED.name`,
			*c.ComponentID, *c.ProjectID, c.ComponentName); err != nil { return err }
	}
	for _, v := range t.FixVersions {
		if v.FixVersionID == nil || v.ProjectID == nil { continue }
		if _, err := tx.Exec(ctx,
			`INSERT INTO fix_versions (fix_version_id, project_id, name, released, release_date)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (fix_version_id) DO UPDATE SET
				name = EXCLUDED.name, released = EXCLUDED.released, release_date = EXCLUDED.release_date`,
			*v.FixVersionID, *v.ProjectID, v.FixVersionName, v.Released, releaseDate(v.ReleaseDate)); err != nil { return err }
	}
	for _, l := range t.Labels {
		if _, err := tx.Exec(ctx,
			`INSERT INTO labels (label) VALUES ($1) ON CONFLICT (label) DO NOTHING`, l.Label); err != nil { return err }
	}
	return nil
}

// upsertIssue replaces the snapshot row and the association rows.
// Associations are a complete snapshot of current state, so delete-
// then-reinsert is safe and keeps replays idempotent.
func upsertIssue(ctx context.Context, tx pgx.Tx, t transform.IssueTransform) error {
	issue := t.Issue
	if _, err := tx.Exec(ctx,
		`INSERT INTO issues (issue_id, issue_key, project_id, issue_type_id, status_id, priority_id,
			summary, description, reporter_id, assignee_id, created_at, updated_at,
			resolution_date, due_date, custom_fields, raw_issue, raw_changelog)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (issue_id) DO UPDATE SET
			issue_key = EXCLUDED.issue_key,
			project_id = EXCLUDED.project_id,
			issue_type_id = EXCLUDED.issue_type_id,
			status_id = EXCLUDED.status_id,
			priority_id = EXCLUDED.priority_id,
			summary = EXCLUDED.summary,
			description = EXCLUDED.description,
			reporter_id = EXCLUDED.reporter_id,
			assignee_id = EXCLUDED.assignee_id,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			resolution_date = EXCLUDED.resolution_date,
			due_date = EXCLUDED.due_date,
			custom_fields = EXCLUDED.custom_fields,
			raw_issue = EXCLUDED.raw_issue,
			raw_changelog = EXCLUDED.raw_changelog`,
		issue.IssueID, issue.IssueKey, issue.ProjectID, issue.IssueTypeID, issue.StatusID, issue.PriorityID,
		issue.Summary, issue.Description, issue.ReporterID, issue.AssigneeID, issue.CreatedAt, issue.UpdatedAt,
		issue.ResolutionDate, issue.DueDate, issue.CustomFields, []byte(issue.RawIssue), rawOrNil(issue.RawChangelog)); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM issue_labels WHERE issue_id = $1`, issue.IssueID); err != nil { return err }
	batch := &pgx.Batch{}
	for _, l := range t.Labels {
		batch.Queue(`INSERT INTO issue_labels (issue_id, label) VALUES ($1, $2) ON CONFLICT DO NOTHING`, issue.IssueID, l.Label)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM issue_components WHERE issue_id = $1`, issue.IssueID); err != nil { return err }
	for _, c := range t.Components {
		if c.ComponentID == nil { continue }
		batch.Queue(`INSERT INTO issue_components (issue_id, component_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, issue.IssueID, *c.ComponentID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM issue_fix_versions WHERE issue_id = $1`, issue.IssueID); err != nil { return err }
	for _, v := range t.FixVersions {
		if v.FixVersionID == nil { continue }
		batch.Queue(`INSERT INTO issue_fix_versions (issue_id, fix_version_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, issue.IssueID, *v.FixVersionID)
	}
	if batch.Len() == 0 { return nil }
	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil { return err }
	}
	return br.Close()
}

// insertLinks resolves every destination key in the batch with one
// bulk lookup, then inserts only resolvable links. A destination that
// has not been loaded yet (e.g. outside the backfill scope) is skipped.
func insertLinks(ctx context.Context, tx pgx.Tx, transforms []transform.IssueTransform) (int, error) {
	keySet := map[string]struct{}{}
	for _, t := range transforms {
		for _, l := range t.Links {
			if l.DstIssueKey != "" { keySet[l.DstIssueKey] = struct{}{} }
		}
	}
	if len(keySet) == 0 { return 0, nil }
	keys := make([]string, 0, len(keySet))
	for k := range keySet { keys = append(keys, k) }

	rows, err := tx.Query(ctx, `SELECT issue_key, issue_id FROM issues WHERE issue_key = ANY($1)`, keys)
	if err != nil { return 0, err }
	mapping := map[string]int64{}
	for rows.Next() {
		var key string
		var id int64
		if err := rows.Scan(&key, &id); err != nil { rows.Close(); return 0, err }
		mapping[key] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil { return 0, err }

	inserted := 0
	for _, t := range transforms {
		for _, l := range t.Links {
			dstID, ok := mapping[l.DstIssueKey]
			if !ok { continue }
			if _, err := tx.Exec(ctx,
				`INSERT INTO issue_links (src_issue_id, dst_issue_id, link_type_key, link_type_name, direction)
				 VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
				l.SrcIssueID, dstID, l.LinkTypeKey, l.LinkTypeName, l.Direction); err != nil {
				return 0, err
			}
			inserted++
		}
	}
	return inserted, nil
}

// insertChanges upserts a group row per history id and one item row per
// field change, keyed so repeated delivery of the same audit entry
// cannot duplicate rows.
func insertChanges(ctx context.Context, tx pgx.Tx, transforms []transform.IssueTransform) (int, error) {
	inserted := 0
	for _, t := range transforms {
		for _, c := range t.Changes {
			if _, err := tx.Exec(ctx,
				`INSERT INTO change_groups (history_id, issue_id, author_id, created_at)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (history_id) DO UPDATE SET author_id = EXCLUDED.author_id, created_at = EXCLUDED.created_at`,
				c.HistoryID, c.IssueID, c.AuthorID, c.CreatedAt); err != nil {
				return 0, err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO change_items (history_id, field, field_type, from_string, to_string, from_value, to_value)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (history_id, field, from_value, to_value) DO UPDATE SET
					field_type = EXCLUDED.field_type, from_string = EXCLUDED.from_string, to_string = EXCLUDED.to_string`,
				c.HistoryID, c.Field, c.FieldType, c.FromString, c.ToString, c.FromValue, c.ToValue); err != nil {
				return 0, err
			}
			inserted++
		}
	}
	return inserted, nil
}

func rawOrNil(raw []byte) any {
	if len(raw) == 0 { return nil }
	return raw
}

func releaseDate(t *time.Time) any {
	if t == nil { return nil }
	return *t
}
