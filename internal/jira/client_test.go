package jira_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RodeFRode/jira-extraction/internal/jira"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *jira.Client {
	t.Helper()
	httpc, err := jira.NewHTTPClient(jira.HTTPOptions{BaseURL: baseURL, PAT: "token"}, zerolog.Nop())
	require.NoError(t, err)
	return jira.NewClient(httpc, zerolog.Nop())
}

// searchServer replies to /rest/api/2/search keyed on the startAt in
// the request body.
func searchServer(t *testing.T, responses map[int]map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/search", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		startAt := int(payload["startAt"].(float64))
		resp, ok := responses[startAt]
		require.Truef(t, ok, "unexpected startAt %d", startAt)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func issueStub(id, key string) map[string]any {
	return map[string]any{"id": id, "key": key, "fields": map[string]any{}}
}

func TestSearchPagesAdvancesToTotal(t *testing.T) {
	srv := searchServer(t, map[int]map[string]any{
		0: {"issues": []any{issueStub("1", "ABC-1"), issueStub("2", "ABC-2")}, "total": 3, "maxResults": 2},
		2: {"issues": []any{issueStub("3", "ABC-3")}, "total": 3, "maxResults": 2},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	var starts []int
	var keys []string
	for page, err := range c.SearchPages(context.Background(), jira.SearchRequest{JQL: "project = ABC", PageSize: 2}) {
		require.NoError(t, err)
		starts = append(starts, page.StartAt)
		for _, issue := range page.Issues {
			keys = append(keys, issue["key"].(string))
		}
	}
	require.Equal(t, []int{0, 2}, starts)
	require.Equal(t, []string{"ABC-1", "ABC-2", "ABC-3"}, keys)
}

func TestSearchPagesStopsOnEmptyPage(t *testing.T) {
	// total overstates what the server can deliver; the empty page must
	// terminate the sequence instead of looping forever
	srv := searchServer(t, map[int]map[string]any{
		0: {"issues": []any{issueStub("1", "ABC-1")}, "total": 10, "maxResults": 1},
		1: {"issues": []any{}, "total": 10, "maxResults": 1},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	pages := 0
	for page, err := range c.SearchPages(context.Background(), jira.SearchRequest{JQL: "project = ABC", PageSize: 1}) {
		require.NoError(t, err)
		pages++
		require.LessOrEqual(t, len(page.Issues), 1)
	}
	require.Equal(t, 2, pages)
}

func TestSearchPagesHonorsStartAt(t *testing.T) {
	srv := searchServer(t, map[int]map[string]any{
		2: {"issues": []any{issueStub("3", "ABC-3"), issueStub("4", "ABC-4")}, "total": 4, "maxResults": 2},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	var keys []string
	for page, err := range c.SearchPages(context.Background(), jira.SearchRequest{JQL: "project = ABC", PageSize: 2, StartAt: 2}) {
		require.NoError(t, err)
		for _, issue := range page.Issues {
			keys = append(keys, issue["key"].(string))
		}
	}
	require.Equal(t, []string{"ABC-3", "ABC-4"}, keys)
}

func TestSearchPagesYieldsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["bad jql"]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	var got error
	for _, err := range c.SearchPages(context.Background(), jira.SearchRequest{JQL: "nonsense ===", PageSize: 2}) {
		got = err
	}
	var serr *jira.StatusError
	require.ErrorAs(t, got, &serr)
	require.Equal(t, http.StatusBadRequest, serr.Status)
}

func TestSearchStreamFlattensPages(t *testing.T) {
	srv := searchServer(t, map[int]map[string]any{
		0: {"issues": []any{issueStub("1", "ABC-1"), issueStub("2", "ABC-2")}, "total": 3, "maxResults": 2},
		2: {"issues": []any{issueStub("3", "ABC-3")}, "total": 3, "maxResults": 2},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	var keys []string
	for issue, err := range c.SearchStream(context.Background(), jira.SearchRequest{JQL: "project = ABC", PageSize: 2}) {
		require.NoError(t, err)
		keys = append(keys, issue["key"].(string))
	}
	require.Equal(t, []string{"ABC-1", "ABC-2", "ABC-3"}, keys)
}

func TestFieldDefinitionsRequiresArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/field", r.URL.Path)
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FieldDefinitions(context.Background())
	require.ErrorContains(t, err, "unexpected payload")
}

func TestFieldDefinitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"customfield_10016","name":"Story Points"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	defs, err := c.FieldDefinitions(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, "customfield_10016", defs[0]["id"])
}

func TestMyself(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/2/myself", r.URL.Path)
		w.Write([]byte(`{"name":"etl-bot"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	me, err := c.Myself(context.Background())
	require.NoError(t, err)
	require.Equal(t, "etl-bot", me["name"])
}
