package load

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/RodeFRode/jira-extraction/internal/transform"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// warehouseTransform builds a page entry with a resolvable link and a
// changelog row keyed on a stable history id.
func warehouseTransform(issueID int64, key, dstKey string) transform.IssueTransform {
	updated := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	historyID := issueID * 10
	out := transform.IssueTransform{
		Issue: transform.IssueRow{
			IssueID:   issueID,
			IssueKey:  key,
			Summary:   "warehouse sample",
			UpdatedAt: &updated,
			RawIssue:  json.RawMessage(`{"key":"` + key + `"}`),
		},
		Labels: []transform.LabelRow{{IssueID: issueID, Label: "warehouse-test"}},
		Changes: []transform.ChangeRow{
			{HistoryID: &historyID, IssueID: issueID, Field: "status", FromString: "Open", ToString: "Done"},
		},
	}
	if dstKey != "" {
		out.Links = []transform.LinkRow{
			{SrcIssueID: issueID, DstIssueKey: dstKey, LinkTypeKey: "10003", LinkTypeName: "Blocks", Direction: "outward"},
		}
	}
	return out
}

// Needs a database with scripts/schema.sql applied; set
// WAREHOUSE_TEST_DSN to run.
func TestPostgresLoadPageIsIdempotent(t *testing.T) {
	dsn := os.Getenv("WAREHOUSE_TEST_DSN")
	if dsn == "" {
		t.Skip("WAREHOUSE_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	ids := []int64{990001, 990002}
	t.Cleanup(func() {
		for _, q := range []string{
			`DELETE FROM change_items WHERE history_id IN (SELECT history_id FROM change_groups WHERE issue_id = ANY($1))`,
			`DELETE FROM change_groups WHERE issue_id = ANY($1)`,
			`DELETE FROM issue_links WHERE src_issue_id = ANY($1)`,
			`DELETE FROM issue_labels WHERE issue_id = ANY($1)`,
			`DELETE FROM issues WHERE issue_id = ANY($1)`,
		} {
			_, _ = pool.Exec(ctx, q, ids)
		}
	})

	p := NewPostgres(pool, zerolog.Nop())
	page := []transform.IssueTransform{
		warehouseTransform(ids[0], "WHT-1", "WHT-2"),
		warehouseTransform(ids[1], "WHT-2", ""),
	}

	first, err := p.LoadPage(ctx, page)
	require.NoError(t, err)
	require.Equal(t, Stats{Issues: 2, Links: 1, Changes: 2}, first)

	// replaying the page must converge on the same rows
	second, err := p.LoadPage(ctx, page)
	require.NoError(t, err)
	require.Equal(t, first, second)

	var issues, links, changes int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM issues WHERE issue_id = ANY($1)`, ids).Scan(&issues))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM issue_links WHERE src_issue_id = ANY($1)`, ids).Scan(&links))
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM change_items ci JOIN change_groups cg ON cg.history_id = ci.history_id
		 WHERE cg.issue_id = ANY($1)`, ids).Scan(&changes))
	require.Equal(t, 2, issues)
	require.Equal(t, 1, links)
	require.Equal(t, 2, changes)
}
