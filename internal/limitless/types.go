package limitless

import "encoding/json"

// Lifelog is a single timestamped transcript entry as returned by the
// Limitless API. ContentNodes is kept raw: the node schema varies by
// recording source and the server only passes it through.
type Lifelog struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Markdown          string          `json:"markdown,omitempty"`
	TranscriptSummary string          `json:"transcriptSummary,omitempty"`
	ContentNodes      json.RawMessage `json:"contentNodes,omitempty"`
	StartTime         string          `json:"startTime"`
	EndTime           string          `json:"endTime"`
	IsStarred         bool            `json:"isStarred"`
	LastUpdated       string          `json:"lastUpdated"`
}

// GetLifelogsParams mirrors the query parameters of GET /v1/lifelogs.
// Zero values are omitted from the request. Cursor is an opaque token
// passed through unchanged.
type GetLifelogsParams struct {
	Date            string
	Timezone        string
	Start           string
	End             string
	Cursor          string
	Direction       string // "asc" or "desc"
	IncludeMarkdown *bool
	IncludeHeadings *bool
	Limit           int
	IsStarred       *bool
}

// SearchParams drives SearchLifelogs. StartDate/EndDate are calendar dates
// (YYYY-MM-DD) expanded to UTC instants before the upstream call.
type SearchParams struct {
	Query     string
	StartDate string
	EndDate   string
	IsStarred *bool
	Limit     int
}

// LifelogsResponse is the provider's list envelope.
type LifelogsResponse struct {
	Data struct {
		Lifelogs []Lifelog `json:"lifelogs"`
	} `json:"data"`
	Meta struct {
		Lifelogs struct {
			Count      int    `json:"count"`
			NextCursor string `json:"nextCursor,omitempty"`
		} `json:"lifelogs"`
	} `json:"meta"`
}

// LifelogByIDResponse is the provider's single-record envelope.
type LifelogByIDResponse struct {
	Data struct {
		Lifelog Lifelog `json:"lifelog"`
	} `json:"data"`
}
