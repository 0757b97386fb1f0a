// Package transform converts raw Jira issue payloads into the
// relational rows the loaders persist. Transform is pure: no I/O, no
// partial output, and structurally absent sub-objects are treated as
// empty rather than as errors.
package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RodeFRode/jira-extraction/internal/jira"
)

// IssueRow is the denormalized issue snapshot.
type IssueRow struct {
	IssueID        int64
	IssueKey       string
	ProjectID      *int64
	ProjectKey     string
	ProjectName    string
	IssueTypeID    *int64
	IssueTypeName  string
	Summary        string
	Description    string
	PriorityID     *int64
	PriorityName   string
	StatusID       *int64
	StatusName     string
	ReporterID     string
	AssigneeID     string
	CreatedAt      *time.Time
	UpdatedAt      *time.Time
	ResolutionDate *time.Time
	DueDate        *time.Time
	CustomFields   map[string]any
	RawIssue       json.RawMessage
	RawChangelog   json.RawMessage
}

type LabelRow struct {
	IssueID int64
	Label   string
}

type ComponentRow struct {
	IssueID       int64
	ComponentID   *int64
	ComponentName string
	ProjectID     *int64
}

type FixVersionRow struct {
	IssueID        int64
	FixVersionID   *int64
	FixVersionName string
	Released       *bool
	ReleaseDate    *time.Time
	ProjectID      *int64
}

// LinkRow references the destination by key, not id; resolution happens
// at load time against already-persisted issues.
type LinkRow struct {
	SrcIssueID   int64
	DstIssueKey  string
	LinkTypeKey  string
	LinkTypeName string
	Direction    string // "outward" or "inward"
}

type ChangeRow struct {
	HistoryID  *int64
	IssueID    int64
	AuthorID   string
	CreatedAt  *time.Time
	Field      string
	FieldType  string
	FromValue  string
	ToValue    string
	FromString string
	ToString   string
}

// IssueTransform carries every row derived from one raw issue.
type IssueTransform struct {
	Issue       IssueRow
	Labels      []LabelRow
	Components  []ComponentRow
	FixVersions []FixVersionRow
	Links       []LinkRow
	Changes     []ChangeRow
}

// Transform maps one raw issue into its relational rows. The only
// hard requirement is a parseable issue id.
func Transform(issue map[string]any) (IssueTransform, error) {
	issueID := toInt64(issue["id"])
	if issueID == nil {
		return IssueTransform{}, fmt.Errorf("transform: issue %v has no parseable id", issue["key"])
	}

	fields := asMap(issue["fields"])
	project := asMap(fields["project"])
	issueType := asMap(fields["issuetype"])
	priority := asMap(fields["priority"])
	status := asMap(fields["status"])

	row := IssueRow{
		IssueID:        *issueID,
		IssueKey:       toString(issue["key"]),
		ProjectID:      toInt64(project["id"]),
		ProjectKey:     toString(project["key"]),
		ProjectName:    toString(project["name"]),
		IssueTypeID:    toInt64(issueType["id"]),
		IssueTypeName:  toString(issueType["name"]),
		Summary:        toString(fields["summary"]),
		Description:    toString(fields["description"]),
		PriorityID:     toInt64(priority["id"]),
		PriorityName:   toString(priority["name"]),
		StatusID:       toInt64(status["id"]),
		StatusName:     toString(status["name"]),
		ReporterID:     toString(asMap(fields["reporter"])["accountId"]),
		AssigneeID:     toString(asMap(fields["assignee"])["accountId"]),
		CreatedAt:      toTime(fields["created"]),
		UpdatedAt:      toTime(fields["updated"]),
		ResolutionDate: toTime(fields["resolutiondate"]),
		DueDate:        toTime(fields["duedate"]),
		CustomFields:   customFields(fields),
		RawIssue:       mustJSON(issue),
	}
	if changelog, ok := issue["changelog"]; ok { row.RawChangelog = mustJSON(changelog) }

	out := IssueTransform{Issue: row}

	for _, v := range asList(fields["labels"]) {
		if label := toString(v); label != "" {
			out.Labels = append(out.Labels, LabelRow{IssueID: row.IssueID, Label: label})
		}
	}

	for _, v := range asList(fields["components"]) {
		component := asMap(v)
		if component == nil { continue }
		out.Components = append(out.Components, ComponentRow{
			IssueID:       row.IssueID,
			ComponentID:   toInt64(component["id"]),
			ComponentName: toString(component["name"]),
			ProjectID:     row.ProjectID,
		})
	}

	for _, v := range asList(fields["fixVersions"]) {
		version := asMap(v)
		if version == nil { continue }
		out.FixVersions = append(out.FixVersions, FixVersionRow{
			IssueID:        row.IssueID,
			FixVersionID:   toInt64(version["id"]),
			FixVersionName: toString(version["name"]),
			Released:       toBool(version["released"]),
			ReleaseDate:    toTime(version["releaseDate"]),
			ProjectID:      row.ProjectID,
		})
	}

	out.Links = linkRows(row.IssueID, fields)
	out.Changes = changeRows(row.IssueID, issue)
	return out, nil
}

// linkRows emits one directional row per related issue present on a
// link entry. The type key falls back from id to name.
func linkRows(issueID int64, fields map[string]any) []LinkRow {
	var out []LinkRow
	for _, v := range asList(fields["issuelinks"]) {
		link := asMap(v)
		if link == nil { continue }
		linkType := asMap(link["type"])
		typeName := toString(linkType["name"])
		typeKey := toString(linkType["id"])
		if typeKey == "" { typeKey = typeName }
		for _, side := range []struct {
			direction string
			related   any
		}{{"outward", link["outwardIssue"]}, {"inward", link["inwardIssue"]}} {
			related := asMap(side.related)
			if key := toString(related["key"]); key != "" {
				out = append(out, LinkRow{
					SrcIssueID:   issueID,
					DstIssueKey:  key,
					LinkTypeKey:  typeKey,
					LinkTypeName: typeName,
					Direction:    side.direction,
				})
			}
		}
	}
	return out
}

// changeRows flattens the changelog: every item of every history group
// becomes one row sharing the group's id, author and timestamp.
func changeRows(issueID int64, issue map[string]any) []ChangeRow {
	var out []ChangeRow
	changelog := asMap(issue["changelog"])
	for _, h := range asList(changelog["histories"]) {
		history := asMap(h)
		if history == nil { continue }
		historyID := toInt64(history["id"])
		author := asMap(history["author"])
		createdAt := toTime(history["created"])
		for _, i := range asList(history["items"]) {
			item := asMap(i)
			if item == nil { continue }
			out = append(out, ChangeRow{
				HistoryID:  historyID,
				IssueID:    issueID,
				AuthorID:   toString(author["accountId"]),
				CreatedAt:  createdAt,
				Field:      toString(item["field"]),
				FieldType:  toString(item["fieldtype"]),
				FromValue:  toString(item["from"]),
				ToValue:    toString(item["to"]),
				FromString: toString(item["fromString"]),
				ToString:   toString(item["toString"]),
			})
		}
	}
	return out
}

func customFields(fields map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range fields {
		if strings.HasPrefix(k, "customfield_") { out[k] = v }
	}
	return out
}

// helpers tolerant of heterogeneous payload shapes

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func toInt64(v any) *int64 {
	switch n := v.(type) {
	case float64:
		i := int64(n)
		return &i
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil { return nil }
		return &i
	default:
		return nil
	}
}

func toBool(v any) *bool {
	b, ok := v.(bool)
	if !ok { return nil }
	return &b
}

func toTime(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" { return nil }
	t, err := jira.ParseTime(s)
	if err != nil { return nil }
	return &t
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil { return nil }
	return b
}
