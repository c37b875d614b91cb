package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "Limitless Lifelog MCP Server"
	serverVersion = "1.0.0"

	errNotInitialized = "Limitless API client not initialized. API key required."
)

// Helper to get optional string parameter
func getStringParam(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return ""
	}
	val, ok := args[key]
	if !ok {
		return ""
	}
	str, _ := val.(string)
	return str
}

// Helper to get optional number parameter
func getNumberParam(req mcp.CallToolRequest, key string) float64 {
	args, ok := req.Params.Arguments.(map[string]interface{})
	if !ok {
		return 0
	}
	val, ok := args[key]
	if !ok {
		return 0
	}
	num, _ := val.(float64)
	return num
}

// Helper to get optional boolean parameter; ok is false when absent.
func getBoolParam(req mcp.CallToolRequest, key string) (value, ok bool) {
	args, isMap := req.Params.Arguments.(map[string]interface{})
	if !isMap {
		return false, false
	}
	val, present := args[key]
	if !present {
		return false, false
	}
	b, isBool := val.(bool)
	return b, isBool
}

// prettyResult serializes v as indented JSON inside a single text content
// item. Every successful tool invocation goes through here.
func prettyResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error serializing result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// registerTools declares the four lifelog tools against the session's
// server. Handlers guard on the session's client so an unauthenticated
// session yields one failed result envelope per call and the stream stays
// open.
func registerTools(s *server.MCPServer, a *Actor) {
	// ---- Tool: get_lifelogs ----
	getLifelogs := mcp.NewTool("get_lifelogs",
		mcp.WithDescription("Retrieve lifelogs from Limitless with optional filtering"),
		mcp.WithString("date", mcp.Description("Calendar date YYYY-MM-DD, combined with timezone")),
		mcp.WithString("timezone", mcp.Description("IANA timezone for the date parameter")),
		mcp.WithString("start", mcp.Description("Range start as an ISO instant")),
		mcp.WithString("end", mcp.Description("Range end as an ISO instant")),
		mcp.WithString("cursor", mcp.Description("Opaque pagination cursor from a previous page")),
		mcp.WithString("direction", mcp.Description("Sort direction: asc or desc")),
		mcp.WithBoolean("includeMarkdown"),
		mcp.WithBoolean("includeHeadings"),
		mcp.WithNumber("limit", mcp.Description("Maximum entries per page")),
		mcp.WithBoolean("isStarred"),
	)
	s.AddTool(getLifelogs, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client := a.Client()
		if client == nil {
			return mcp.NewToolResultError(errNotInitialized), nil
		}

		params := lifelogParams(req)
		resp, err := client.GetLifelogs(ctx, params)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error retrieving lifelogs: %v", err)), nil
		}

		cursor := resp.Meta.Lifelogs.NextCursor
		return prettyResult(map[string]any{
			"lifelogs": resp.Data.Lifelogs,
			"cursor":   cursor,
			"hasMore":  cursor != "",
			"count":    resp.Meta.Lifelogs.Count,
		})
	})

	// ---- Tool: get_lifelog_by_id ----
	getByID := mcp.NewTool("get_lifelog_by_id",
		mcp.WithDescription("Retrieve a specific lifelog entry by ID"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Lifelog entry ID")),
	)
	s.AddTool(getByID, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("missing required parameter 'id': %v", err)), nil
		}
		client := a.Client()
		if client == nil {
			return mcp.NewToolResultError(errNotInitialized), nil
		}

		resp, err := client.GetLifelogByID(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error retrieving lifelog: %v", err)), nil
		}
		return prettyResult(resp.Data.Lifelog)
	})

	// ---- Tool: delete_lifelog ----
	deleteTool := mcp.NewTool("delete_lifelog",
		mcp.WithDescription("Permanently delete a specific lifelog entry"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Lifelog entry ID")),
	)
	s.AddTool(deleteTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("missing required parameter 'id': %v", err)), nil
		}
		client := a.Client()
		if client == nil {
			return mcp.NewToolResultError(errNotInitialized), nil
		}

		if err := client.DeleteLifelog(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error deleting lifelog: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Successfully deleted lifelog with ID: %s", id)), nil
	})

	// ---- Tool: search_lifelogs ----
	search := mcp.NewTool("search_lifelogs",
		mcp.WithDescription("Search lifelogs with date/time filters and content matching. "+
			"Matching is a case-insensitive substring filter over a single fetched page; "+
			"results are the matched subset, so pagination does not apply to them."),
		mcp.WithString("query", mcp.Description("Text to match in title, markdown or summary")),
		mcp.WithString("startDate", mcp.Description("Start date YYYY-MM-DD, expanded to T00:00:00Z")),
		mcp.WithString("endDate", mcp.Description("End date YYYY-MM-DD, expanded to T23:59:59Z")),
		mcp.WithBoolean("isStarred"),
		mcp.WithNumber("limit", mcp.DefaultNumber(10), mcp.Description("Page size for the underlying fetch")),
	)
	s.AddTool(search, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client := a.Client()
		if client == nil {
			return mcp.NewToolResultError(errNotInitialized), nil
		}

		params := searchParams(req)
		results, err := client.SearchLifelogs(ctx, params)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error searching lifelogs: %v", err)), nil
		}

		query := params.Query
		if query == "" {
			query = "No text filter"
		}
		dateRange := "All dates"
		if params.StartDate != "" && params.EndDate != "" {
			dateRange = fmt.Sprintf("%s to %s", params.StartDate, params.EndDate)
		}
		return prettyResult(map[string]any{
			"results":    results,
			"totalFound": len(results),
			"query":      query,
			"dateRange":  dateRange,
		})
	})
}
