package transform_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/RodeFRode/jira-extraction/internal/transform"
	"github.com/stretchr/testify/require"
)

func sampleIssue() map[string]any {
	raw := `{
		"id": "10001",
		"key": "ABC-1",
		"fields": {
			"summary": "Login fails on retry",
			"description": "Steps to reproduce...",
			"project": {"id": "100", "key": "ABC", "name": "Alpha Board Core"},
			"issuetype": {"id": "3", "name": "Bug"},
			"priority": {"id": "2", "name": "High"},
			"status": {"id": "5", "name": "In Progress"},
			"reporter": {"accountId": "acct-reporter"},
			"assignee": {"accountId": "acct-assignee"},
			"created": "2024-01-01T08:00:00.000+0000",
			"updated": "2024-01-05T09:30:00.000+0000",
			"resolutiondate": null,
			"duedate": "2024-02-01",
			"labels": ["auth", "regression"],
			"components": [
				{"id": "7", "name": "backend"},
				{"name": "frontend"}
			],
			"fixVersions": [
				{"id": "42", "name": "1.2.0", "released": false, "releaseDate": "2024-03-01"}
			],
			"customfield_10016": 5,
			"customfield_10200": {"value": "Platform"},
			"issuelinks": [
				{
					"type": {"id": "10003", "name": "Blocks"},
					"outwardIssue": {"key": "ABC-2"},
					"inwardIssue": {"key": "ABC-3"}
				},
				{
					"type": {"name": "Relates"},
					"outwardIssue": {"key": "XYZ-9"}
				}
			]
		},
		"changelog": {
			"histories": [
				{
					"id": "900",
					"author": {"accountId": "acct-author"},
					"created": "2024-01-02T10:00:00.000+0000",
					"items": [
						{"field": "status", "fieldtype": "jira", "from": "1", "to": "5", "fromString": "Open", "toString": "In Progress"},
						{"field": "assignee", "fieldtype": "jira", "from": null, "to": "acct-assignee"}
					]
				}
			]
		}
	}`
	var issue map[string]any
	if err := json.Unmarshal([]byte(raw), &issue); err != nil { panic(err) }
	return issue
}

func TestTransformSnapshot(t *testing.T) {
	out, err := transform.Transform(sampleIssue())
	require.NoError(t, err)

	issue := out.Issue
	require.EqualValues(t, 10001, issue.IssueID)
	require.Equal(t, "ABC-1", issue.IssueKey)
	require.NotNil(t, issue.ProjectID)
	require.EqualValues(t, 100, *issue.ProjectID)
	require.Equal(t, "ABC", issue.ProjectKey)
	require.Equal(t, "Bug", issue.IssueTypeName)
	require.Equal(t, "High", issue.PriorityName)
	require.Equal(t, "In Progress", issue.StatusName)
	require.Equal(t, "acct-reporter", issue.ReporterID)
	require.Equal(t, "acct-assignee", issue.AssigneeID)
	require.Equal(t, time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC), issue.UpdatedAt.UTC())
	require.Nil(t, issue.ResolutionDate)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), issue.DueDate.UTC())
	require.NotEmpty(t, issue.RawIssue)
	require.NotEmpty(t, issue.RawChangelog)
}

func TestTransformCustomFieldBag(t *testing.T) {
	out, err := transform.Transform(sampleIssue())
	require.NoError(t, err)
	require.Len(t, out.Issue.CustomFields, 2)
	require.Contains(t, out.Issue.CustomFields, "customfield_10016")
	require.Contains(t, out.Issue.CustomFields, "customfield_10200")
	require.NotContains(t, out.Issue.CustomFields, "summary")
}

func TestTransformAssociations(t *testing.T) {
	out, err := transform.Transform(sampleIssue())
	require.NoError(t, err)

	require.Len(t, out.Labels, 2)
	require.Equal(t, "auth", out.Labels[0].Label)

	require.Len(t, out.Components, 2)
	require.EqualValues(t, 7, *out.Components[0].ComponentID)
	require.Nil(t, out.Components[1].ComponentID) // id absent, row still emitted
	require.Equal(t, "frontend", out.Components[1].ComponentName)

	require.Len(t, out.FixVersions, 1)
	fv := out.FixVersions[0]
	require.EqualValues(t, 42, *fv.FixVersionID)
	require.NotNil(t, fv.Released)
	require.False(t, *fv.Released)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), fv.ReleaseDate.UTC())
}

func TestTransformLinksAreDirectional(t *testing.T) {
	out, err := transform.Transform(sampleIssue())
	require.NoError(t, err)

	// first entry has both sides, second only outward
	require.Len(t, out.Links, 3)
	require.Equal(t, "outward", out.Links[0].Direction)
	require.Equal(t, "ABC-2", out.Links[0].DstIssueKey)
	require.Equal(t, "10003", out.Links[0].LinkTypeKey)
	require.Equal(t, "Blocks", out.Links[0].LinkTypeName)
	require.Equal(t, "inward", out.Links[1].Direction)
	require.Equal(t, "ABC-3", out.Links[1].DstIssueKey)
	// type id missing: key falls back to the name
	require.Equal(t, "Relates", out.Links[2].LinkTypeKey)
	require.Equal(t, "XYZ-9", out.Links[2].DstIssueKey)
}

func TestTransformChangelogExpansion(t *testing.T) {
	out, err := transform.Transform(sampleIssue())
	require.NoError(t, err)

	require.Len(t, out.Changes, 2)
	for _, c := range out.Changes {
		require.EqualValues(t, 900, *c.HistoryID)
		require.EqualValues(t, 10001, c.IssueID)
		require.Equal(t, "acct-author", c.AuthorID)
		require.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), c.CreatedAt.UTC())
	}
	require.Equal(t, "status", out.Changes[0].Field)
	require.Equal(t, "Open", out.Changes[0].FromString)
	require.Equal(t, "In Progress", out.Changes[0].ToString)
	require.Equal(t, "assignee", out.Changes[1].Field)
	require.Equal(t, "", out.Changes[1].FromValue)
}

func TestTransformRequiresIssueID(t *testing.T) {
	_, err := transform.Transform(map[string]any{"key": "ABC-1"})
	require.ErrorContains(t, err, "no parseable id")
}

func TestTransformToleratesMalformedShapes(t *testing.T) {
	out, err := transform.Transform(map[string]any{
		"id":  "10002",
		"key": "ABC-2",
		"fields": map[string]any{
			"project":    "not-a-map",
			"labels":     "not-a-list",
			"issuelinks": []any{"not-a-map", map[string]any{"type": 12}},
		},
		"changelog": map[string]any{"histories": []any{"junk", map[string]any{"items": "junk"}}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 10002, out.Issue.IssueID)
	require.Empty(t, out.Labels)
	require.Empty(t, out.Links)
	require.Empty(t, out.Changes)
	require.Nil(t, out.Issue.ProjectID)
}
