// Package limitless is a thin client for the Limitless lifelog REST API.
// It is stateless besides the held API key; retry policy, if any, lives here
// and not in the tool layer.
package limitless

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the production Limitless API endpoint.
const DefaultBaseURL = "https://api.limitless.ai/v1"

// APIError is a non-2xx upstream response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Limitless API error (%d): %s", e.StatusCode, e.Body)
}

// NotFound reports whether err is an upstream 404.
func NotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the Limitless API on behalf of one credential.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// NewClient creates a client bound to the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpc:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (p GetLifelogsParams) values() url.Values {
	q := url.Values{}
	if p.Date != "" {
		q.Set("date", p.Date)
	}
	if p.Timezone != "" {
		q.Set("timezone", p.Timezone)
	}
	if p.Start != "" {
		q.Set("start", p.Start)
	}
	if p.End != "" {
		q.Set("end", p.End)
	}
	if p.Cursor != "" {
		q.Set("cursor", p.Cursor)
	}
	if p.Direction != "" {
		q.Set("direction", p.Direction)
	}
	if p.IncludeMarkdown != nil {
		q.Set("includeMarkdown", strconv.FormatBool(*p.IncludeMarkdown))
	}
	if p.IncludeHeadings != nil {
		q.Set("includeHeadings", strconv.FormatBool(*p.IncludeHeadings))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.IsStarred != nil {
		q.Set("isStarred", strconv.FormatBool(*p.IsStarred))
	}
	return q
}

// GetLifelogs retrieves one page of lifelogs matching params.
func (c *Client) GetLifelogs(ctx context.Context, params GetLifelogsParams) (*LifelogsResponse, error) {
	var out LifelogsResponse
	if err := c.do(ctx, http.MethodGet, "/lifelogs", params.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLifelogByID retrieves a single lifelog.
func (c *Client) GetLifelogByID(ctx context.Context, id string) (*LifelogByIDResponse, error) {
	var out LifelogByIDResponse
	if err := c.do(ctx, http.MethodGet, "/lifelogs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteLifelog permanently deletes a lifelog. The upstream is not
// guaranteed idempotent; a repeat call may return 404.
func (c *Client) DeleteLifelog(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/lifelogs/"+url.PathEscape(id), nil, nil)
}

// SearchLifelogs fetches one page with markdown included and filters it
// locally with a case-insensitive substring match over title, markdown and
// transcript summary. The upstream has no full-text search, so the result
// is the matched subset of a single page, not an exhaustive search; cursor
// and hasMore semantics do not apply to the filtered set.
func (c *Client) SearchLifelogs(ctx context.Context, params SearchParams) ([]Lifelog, error) {
	includeMarkdown := true
	apiParams := GetLifelogsParams{
		Limit:           params.Limit,
		IncludeMarkdown: &includeMarkdown,
		IsStarred:       params.IsStarred,
	}
	// Fixed UTC expansion of the calendar dates, independent of any
	// timezone the caller uses elsewhere.
	if params.StartDate != "" {
		apiParams.Start = params.StartDate + "T00:00:00Z"
	}
	if params.EndDate != "" {
		apiParams.End = params.EndDate + "T23:59:59Z"
	}

	resp, err := c.GetLifelogs(ctx, apiParams)
	if err != nil {
		return nil, err
	}

	logs := resp.Data.Lifelogs
	if params.Query == "" {
		return logs, nil
	}
	needle := strings.ToLower(params.Query)
	matched := make([]Lifelog, 0, len(logs))
	for _, log := range logs {
		if strings.Contains(strings.ToLower(log.Title), needle) ||
			strings.Contains(strings.ToLower(log.Markdown), needle) ||
			strings.Contains(strings.ToLower(log.TranscriptSummary), needle) {
			matched = append(matched, log)
		}
	}
	return matched, nil
}
