// Package auth extracts the caller's Limitless API key from a request.
package auth

import (
	"net/http"
	"regexp"
	"strings"
)

// HeaderAPIKey is the custom header carrying the key, also used by the
// router to re-inject a resolved key before forwarding to a session.
const HeaderAPIKey = "X-Limitless-API-Key"

// QueryAPIKey is the legacy query-parameter form.
const QueryAPIKey = "api_key"

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsUUID reports whether s is a canonical UUID, case-insensitively.
// Only path-derived keys are held to this shape; keys from query, header
// or bearer sources are opaque and validated by the upstream call failing.
func IsUUID(s string) bool {
	return uuidPattern.MatchString(strings.ToLower(s))
}

// Source identifies where a key was found.
type Source int

const (
	SourceNone Source = iota
	SourcePath
	SourceQuery
	SourceHeader
	SourceBearer
)

func (s Source) String() string {
	switch s {
	case SourcePath:
		return "path"
	case SourceQuery:
		return "query"
	case SourceHeader:
		return "header"
	case SourceBearer:
		return "bearer"
	default:
		return "none"
	}
}

// pathKey matches /{uuid}/sse and /{uuid}/mcp.
var pathKey = regexp.MustCompile(`(?i)^/([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})/(sse|mcp)$`)

// Resolve extracts an API key from the request. Precedence, first match
// wins: UUID path segment, api_key query parameter, X-Limitless-API-Key
// header, Authorization bearer token. Returns "" and SourceNone when no
// key is present.
func Resolve(r *http.Request) (string, Source) {
	if m := pathKey.FindStringSubmatch(r.URL.Path); m != nil {
		return m[1], SourcePath
	}
	if key := r.URL.Query().Get(QueryAPIKey); key != "" {
		return key, SourceQuery
	}
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		return key, SourceHeader
	}
	if authz := r.Header.Get("Authorization"); authz != "" {
		token := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
		if token != "" && token != authz {
			return token, SourceBearer
		}
	}
	return "", SourceNone
}
