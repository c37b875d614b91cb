package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifelog-labs/limitless-mcp-remote/internal/limitless"
)

// fixtureUpstream fakes the Limitless API for tool-level tests.
func fixtureUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func authedActor(upstreamURL string) *Actor {
	return NewActor(NewSessionID(), Options{
		APIKey:          "53d7793f-2e9f-4db2-883c-1cd490eeba5b",
		UpstreamBaseURL: upstreamURL,
	})
}

// run pushes tool-call lines through a full fetch and returns the frames.
func run(t *testing.T, a *Actor, lines ...string) []map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/sse", strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, a.Fetch(rec, r))
	return frames(t, rec.Body.String())
}

func lifelogPage(logs []limitless.Lifelog, nextCursor string) string {
	resp := limitless.LifelogsResponse{}
	resp.Data.Lifelogs = logs
	resp.Meta.Lifelogs.Count = len(logs)
	resp.Meta.Lifelogs.NextCursor = nextCursor
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGetLifelogsEnvelope(t *testing.T) {
	upstream := fixtureUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lifelogs", r.URL.Path)
		assert.Equal(t, "desc", r.URL.Query().Get("direction"))
		fmt.Fprint(w, lifelogPage([]limitless.Lifelog{
			{ID: "l1", Title: "Walk"},
			{ID: "l2", Title: "Standup"},
		}, "cursor-2"))
	})

	a := authedActor(upstream.URL)
	got := run(t, a, toolCallLine(1, "get_lifelogs", map[string]any{"direction": "desc", "limit": 2}))
	require.Len(t, got, 1)

	text, isError := envelope(t, got[0])
	require.False(t, isError)

	// Success payloads are pretty-printed JSON.
	assert.Contains(t, text, "\n  ")
	var payload struct {
		Lifelogs []limitless.Lifelog `json:"lifelogs"`
		Cursor   string              `json:"cursor"`
		HasMore  bool                `json:"hasMore"`
		Count    int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	assert.Len(t, payload.Lifelogs, 2)
	assert.Equal(t, "cursor-2", payload.Cursor)
	assert.True(t, payload.HasMore)
	assert.Equal(t, 2, payload.Count)
}

func TestGetLifelogByIDNotFoundKeepsStreamOpen(t *testing.T) {
	upstream := fixtureUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.Error(w, "lifelog not found", http.StatusNotFound)
			return
		}
		var resp limitless.LifelogByIDResponse
		resp.Data.Lifelog = limitless.Lifelog{ID: "present", Title: "Found it"}
		b, _ := json.Marshal(resp)
		w.Write(b)
	})

	a := authedActor(upstream.URL)
	got := run(t, a,
		toolCallLine(1, "get_lifelog_by_id", map[string]any{"id": "missing"}),
		toolCallLine(2, "get_lifelog_by_id", map[string]any{"id": "present"}),
	)
	require.Len(t, got, 2, "a failed dispatch must not terminate the stream")

	byID := map[float64]map[string]any{}
	for _, frame := range got {
		byID[frame["id"].(float64)] = frame
	}

	text, isError := envelope(t, byID[1])
	assert.True(t, isError)
	assert.Contains(t, text, "Error retrieving lifelog")
	assert.Contains(t, text, "404")

	text, isError = envelope(t, byID[2])
	assert.False(t, isError)
	assert.Contains(t, text, "Found it")
}

func TestGetLifelogByIDRequiresID(t *testing.T) {
	a := authedActor("http://unused.invalid")
	got := run(t, a, toolCallLine(1, "get_lifelog_by_id", nil))
	require.Len(t, got, 1)

	text, isError := envelope(t, got[0])
	assert.True(t, isError)
	assert.Contains(t, text, "id")
}

func TestDeleteLifelog(t *testing.T) {
	var deleted string
	upstream := fixtureUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = strings.TrimPrefix(r.URL.Path, "/lifelogs/")
		w.WriteHeader(http.StatusNoContent)
	})

	a := authedActor(upstream.URL)
	got := run(t, a, toolCallLine(1, "delete_lifelog", map[string]any{"id": "doomed-1"}))
	require.Len(t, got, 1)

	text, isError := envelope(t, got[0])
	assert.False(t, isError)
	assert.Equal(t, "Successfully deleted lifelog with ID: doomed-1", text)
	assert.Equal(t, "doomed-1", deleted)
}

func TestSearchLifelogsFiltersFetchedPage(t *testing.T) {
	fixture := []limitless.Lifelog{
		{ID: "1", Title: "Coffee chat", Markdown: "beans"},
		{ID: "2", Title: "Team sync", Markdown: "daily standup notes"},
		{ID: "3", Title: "Review", Markdown: "pull requests"},
		{ID: "4", Title: "Errands", Markdown: "groceries"},
		{ID: "5", Title: "Planning", Markdown: "sprint standup recap"},
		{ID: "6", Title: "Dinner", Markdown: "pasta"},
		{ID: "7", Title: "Reading", Markdown: "novel"},
		{ID: "8", Title: "Gym", Markdown: "leg day"},
	}
	var gotLimit string
	upstream := fixtureUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		fmt.Fprint(w, lifelogPage(fixture, "ignored"))
	})

	a := authedActor(upstream.URL)
	got := run(t, a, toolCallLine(1, "search_lifelogs", map[string]any{"query": "standup", "limit": 5}))
	require.Len(t, got, 1)

	text, isError := envelope(t, got[0])
	require.False(t, isError)
	assert.Equal(t, "5", gotLimit, "page fetch honors the requested limit")

	var payload struct {
		Results    []limitless.Lifelog `json:"results"`
		TotalFound int                 `json:"totalFound"`
		Query      string              `json:"query"`
		DateRange  string              `json:"dateRange"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	assert.Equal(t, 2, payload.TotalFound)
	require.Len(t, payload.Results, 2)
	assert.Equal(t, "2", payload.Results[0].ID)
	assert.Equal(t, "5", payload.Results[1].ID)
	assert.Equal(t, "standup", payload.Query)
	assert.Equal(t, "All dates", payload.DateRange)
}

func TestSearchLifelogsDefaults(t *testing.T) {
	var gotQuery map[string][]string
	upstream := fixtureUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, lifelogPage(nil, ""))
	})

	a := authedActor(upstream.URL)
	got := run(t, a, toolCallLine(1, "search_lifelogs", map[string]any{
		"startDate": "2025-03-01",
		"endDate":   "2025-03-07",
	}))
	require.Len(t, got, 1)

	text, isError := envelope(t, got[0])
	require.False(t, isError)

	assert.Equal(t, []string{"10"}, gotQuery["limit"], "limit defaults to 10")
	assert.Equal(t, []string{"true"}, gotQuery["includeMarkdown"])
	assert.Equal(t, []string{"2025-03-01T00:00:00Z"}, gotQuery["start"])
	assert.Equal(t, []string{"2025-03-07T23:59:59Z"}, gotQuery["end"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	assert.Equal(t, "No text filter", payload["query"])
	assert.Equal(t, "2025-03-01 to 2025-03-07", payload["dateRange"])
}
