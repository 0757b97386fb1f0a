/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/rs/zerolog"
)

// Client exposes the handful of Jira REST endpoints the ETL uses.
type Client struct {
	http *HTTPClient
	log  zerolog.Logger
}

func NewClient(http *HTTPClient, log zerolog.Logger) *Client { return &Client{http: http, log: log} }

// SearchPage is a single page of search results.
type SearchPage struct {
	StartAt    int
	MaxResults int
	Total      int
	Issues     []map[string]any
}

type SearchRequest struct {
	JQL           string
	Fields        []string
	Expand        []string // defaults to ["changelog"]
	ValidateQuery bool
	PageSize      int
	StartAt       int
}

// Myself returns the authenticated user, validating connectivity and
// credentials before a run starts.
func (c *Client) Myself(ctx context.Context) (map[string]any, error) {
	b, err := c.http.Get(ctx, "/rest/api/2/myself")
	if err != nil { return nil, err }
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil { return nil, fmt.Errorf("jira: decode myself: %w", err) }
	return out, nil
}

// FieldDefinitions fetches field metadata. The endpoint returns a JSON
// array; anything else is a data-contract violation.
func (c *Client) FieldDefinitions(ctx context.Context) ([]map[string]any, error) {
	b, err := c.http.Get(ctx, "/rest/api/2/field")
	if err != nil { return nil, err }
	var out []map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("jira: unexpected payload for /field endpoint: %w", err)
	}
	return out, nil
}

type searchResponse struct {
	Issues     []map[string]any `json:"issues"`
	Total      *int             `json:"total"`
	MaxResults *int             `json:"maxResults"`
}

// SearchPages yields search pages sequentially in strictly increasing
// StartAt order, advancing by the number of issues actually returned.
// The sequence terminates once the reported total is reached or a page
// comes back empty, which guards against server-side count drift.
func (c *Client) SearchPages(ctx context.Context, req SearchRequest) iter.Seq2[SearchPage, error] {
	expand := req.Expand
	if len(expand) == 0 { expand = []string{"changelog"} }
	fields := req.Fields
	if fields == nil { fields = []string{} }
	return func(yield func(SearchPage, error) bool) {
		current := req.StartAt
		total := -1
		for total < 0 || current < total {
			payload := map[string]any{
				"jql":           req.JQL,
				"startAt":       current,
				"maxResults":    req.PageSize,
				"fields":        fields,
				"expand":        expand,
				"validateQuery": req.ValidateQuery,
			}
			c.log.Debug().Int("start_at", current).Msg("fetching jira search page")
			b, err := c.http.Post(ctx, "/rest/api/2/search", payload)
			if err != nil {
				yield(SearchPage{}, err)
				return
			}
			var data searchResponse
			if err := json.Unmarshal(b, &data); err != nil {
				yield(SearchPage{}, fmt.Errorf("jira: unexpected response structure from search: %w", err))
				return
			}
			if data.Total != nil { total = *data.Total } else { total = len(data.Issues) }
			maxResults := req.PageSize
			if data.MaxResults != nil { maxResults = *data.MaxResults }
			page := SearchPage{StartAt: current, MaxResults: maxResults, Total: total, Issues: data.Issues}
			if !yield(page, nil) { return }
			current += len(data.Issues)
			if len(data.Issues) == 0 { return }
		}
	}
}

// SearchStream flattens SearchPages into individual issues.
func (c *Client) SearchStream(ctx context.Context, req SearchRequest) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		for page, err := range c.SearchPages(ctx, req) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, issue := range page.Issues {
				if !yield(issue, nil) { return }
			}
		}
	}
}
