package session

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lifelog-labs/limitless-mcp-remote/internal/limitless"
)

// lifelogParams maps validated get_lifelogs arguments onto the upstream
// filter object. Absent parameters stay zero and are omitted from the
// upstream query.
func lifelogParams(req mcp.CallToolRequest) limitless.GetLifelogsParams {
	params := limitless.GetLifelogsParams{
		Date:      getStringParam(req, "date"),
		Timezone:  getStringParam(req, "timezone"),
		Start:     getStringParam(req, "start"),
		End:       getStringParam(req, "end"),
		Cursor:    getStringParam(req, "cursor"),
		Direction: getStringParam(req, "direction"),
		Limit:     int(getNumberParam(req, "limit")),
	}
	if v, ok := getBoolParam(req, "includeMarkdown"); ok {
		params.IncludeMarkdown = &v
	}
	if v, ok := getBoolParam(req, "includeHeadings"); ok {
		params.IncludeHeadings = &v
	}
	if v, ok := getBoolParam(req, "isStarred"); ok {
		params.IsStarred = &v
	}
	return params
}

// searchParams maps search_lifelogs arguments. The limit defaults to 10
// and bounds the underlying page fetch, not the match count.
func searchParams(req mcp.CallToolRequest) limitless.SearchParams {
	limit := int(getNumberParam(req, "limit"))
	if limit <= 0 {
		limit = 10
	}
	params := limitless.SearchParams{
		Query:     getStringParam(req, "query"),
		StartDate: getStringParam(req, "startDate"),
		EndDate:   getStringParam(req, "endDate"),
		Limit:     limit,
	}
	if v, ok := getBoolParam(req, "isStarred"); ok {
		params.IsStarred = &v
	}
	return params
}
