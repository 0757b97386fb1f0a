/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package extract drives resumable, page-at-a-time extraction of one
// scope (project + issue type) through the cursor store.
package extract

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/RodeFRode/jira-extraction/internal/config"
	"github.com/RodeFRode/jira-extraction/internal/jira"
	"github.com/RodeFRode/jira-extraction/internal/state"
	"github.com/rs/zerolog"
)

type Mode string

const (
	ModeInitial     Mode = "initial"
	ModeIncremental Mode = "incremental"
)

// Page is one processed page of issues for a scope. Issues holds the
// post-filter records; Page retains the raw pagination bookkeeping.
type Page struct {
	Scope  string
	Page   jira.SearchPage
	Issues []map[string]any
}

func basePredicate(scope config.Scope) string {
	if scope.JQLBase != "" { return scope.JQLBase }
	return fmt.Sprintf("project = %s", scope.Project)
}

// InitialJQL bounds the backfill to the configured historical window.
func InitialJQL(scope config.Scope, issueType config.IssueType, windows config.Windows) string {
	return fmt.Sprintf("%s AND issuetype = %q AND updated >= -%dd ORDER BY updated ASC, key ASC",
		basePredicate(scope), issueType.Name, windows.InitialDays)
}

// IncrementalJQL anchors at the cursor watermark minus the safety skew.
// Without a cursor the first incremental run behaves like a bounded
// backfill from now - initial window.
func IncrementalJQL(scope config.Scope, issueType config.IssueType, windows config.Windows, cursor state.Cursor, now time.Time) string {
	var anchor time.Time
	if !cursor.LastUpdatedAt.IsZero() {
		anchor = cursor.LastUpdatedAt.Add(-windows.SafetySkew())
	} else {
		anchor = now.UTC().Add(-time.Duration(windows.InitialDays) * 24 * time.Hour)
	}
	// Bare JQL datetimes are read in the API user's profile timezone, so
	// the anchor keeps the watermark's own offset rather than being
	// shifted to UTC wall-clock.
	return fmt.Sprintf("%s AND issuetype = %q AND updated >= '%s' ORDER BY updated ASC, key ASC",
		basePredicate(scope), issueType.Name, anchor.Format("2006-01-02 15:04"))
}

// FilterIncremental drops issues at or below the cursor watermark. An
// issue survives when its update time is strictly after the watermark,
// or equal with a key sorting strictly after the watermark key. The
// anchor JQL is deliberately inclusive (safety skew), so this client
// side filter is what prevents re-emitting boundary issues.
func FilterIncremental(issues []map[string]any, cursor state.Cursor) []map[string]any {
	if cursor.LastUpdatedAt.IsZero() { return issues }
	anchor := cursor.LastUpdatedAt
	var out []map[string]any
	for _, issue := range issues {
		fields, _ := issue["fields"].(map[string]any)
		updated := anchor
		if raw, ok := fields["updated"].(string); ok && raw != "" {
			if t, err := jira.ParseTime(raw); err == nil { updated = t }
		}
		key, _ := issue["key"].(string)
		switch {
		case updated.After(anchor):
			out = append(out, issue)
		case updated.Equal(anchor) && cursor.LastIssueKey != "" && key > cursor.LastIssueKey:
			out = append(out, issue)
		}
	}
	return out
}

// AdvanceCursor scans the filtered issues for the maximum
// (updated, key) pair, comparing keys only on an exact timestamp match
// against the running maximum. ResumePageAt is left for the caller.
func AdvanceCursor(cursor state.Cursor, issues []map[string]any) state.Cursor {
	if len(issues) == 0 { return cursor }
	maxAt := cursor.LastUpdatedAt
	maxKey := cursor.LastIssueKey
	for _, issue := range issues {
		fields, _ := issue["fields"].(map[string]any)
		raw, _ := fields["updated"].(string)
		if raw == "" { continue }
		updated, err := jira.ParseTime(raw)
		if err != nil { continue }
		key, _ := issue["key"].(string)
		if maxAt.IsZero() || updated.After(maxAt) {
			maxAt = updated
			maxKey = key
		} else if updated.Equal(maxAt) && key > maxKey {
			maxKey = key
		}
	}
	if maxAt.IsZero() { return cursor }
	return state.Cursor{LastUpdatedAt: maxAt, LastIssueKey: maxKey, ResumePageAt: cursor.ResumePageAt}
}

// Extractor streams pages for scopes while keeping the cursor store
// current. One Extractor handles one logical pagination sequence per
// (scope, mode) at a time.
type Extractor struct {
	api     *jira.Client
	store   state.Store
	windows config.Windows
	page    int
	valid   bool
	log     zerolog.Logger
	now     func() time.Time
}

func New(api *jira.Client, store state.Store, cfg config.Config, log zerolog.Logger) *Extractor {
	return &Extractor{
		api:     api,
		store:   store,
		windows: cfg.Windows,
		page:    cfg.Jira.PageSize,
		valid:   cfg.Jira.ValidateQuery,
		log:     log,
		now:     time.Now,
	}
}

// StreamScope yields pages for a scope, saving the advanced cursor
// before every page is handed downstream; a crash while transforming or
// loading a page therefore resumes at that page, and the idempotent
// loaders make the replay safe. Pages whose issues were all filtered
// out are still yielded so callers can account for them.
func (e *Extractor) StreamScope(ctx context.Context, scope config.Scope, issueType config.IssueType, mode Mode) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		scopeID := config.ScopeName(scope.Project, issueType.Name)
		cursor, err := e.store.Load(ctx, scopeID)
		if err != nil {
			yield(Page{}, fmt.Errorf("load cursor for %s: %w", scopeID, err))
			return
		}
		var jql string
		startAt := 0
		switch mode {
		case ModeInitial:
			// The backfill query is stable across runs, so the page
			// offset of a partially completed backfill stays valid.
			jql = InitialJQL(scope, issueType, e.windows)
			startAt = cursor.ResumePageAt
		case ModeIncremental:
			// The incremental query is re-anchored at the advanced
			// watermark; a page offset saved under an earlier anchor
			// must not be reused. Starting at zero re-fetches a small
			// overlap that FilterIncremental drops again.
			jql = IncrementalJQL(scope, issueType, e.windows, cursor, e.now())
		default:
			yield(Page{}, fmt.Errorf("unsupported extraction mode %q", mode))
			return
		}
		e.log.Info().Str("scope", scopeID).Str("mode", string(mode)).Int("start_at", startAt).Msg("streaming scope")

		req := jira.SearchRequest{
			JQL:           jql,
			Fields:        issueType.Fields,
			ValidateQuery: e.valid,
			PageSize:      e.page,
			StartAt:       startAt,
		}
		for page, err := range e.api.SearchPages(ctx, req) {
			if err != nil {
				yield(Page{}, err)
				return
			}
			issues := page.Issues
			if mode == ModeIncremental {
				issues = FilterIncremental(issues, cursor)
			}
			next := AdvanceCursor(cursor, issues)
			next.ResumePageAt = page.StartAt + len(page.Issues)
			if err := e.store.Save(ctx, scopeID, next); err != nil {
				yield(Page{}, fmt.Errorf("save cursor for %s: %w", scopeID, err))
				return
			}
			if !yield(Page{Scope: scopeID, Page: page, Issues: issues}, nil) { return }
			cursor = next
		}
	}
}
