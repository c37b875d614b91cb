// Package httpapi is the HTTP entry point: CORS, liveness, the usage
// document, the upstream connectivity probe, and the connection routes
// that hand requests off to session actors.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/lifelog-labs/limitless-mcp-remote/internal/auth"
	"github.com/lifelog-labs/limitless-mcp-remote/internal/limitless"
	"github.com/lifelog-labs/limitless-mcp-remote/internal/session"
)

const (
	serverName    = "Limitless MCP Remote Server"
	serverVersion = "1.0.0"
)

// Config wires the router.
type Config struct {
	// UpstreamBaseURL overrides the Limitless API endpoint.
	UpstreamBaseURL string
	// HTTPClient used for all upstream calls.
	HTTPClient *http.Client
	// IdleTimeout for bodyless streams.
	IdleTimeout time.Duration
	// SessionTTL reaps actors that never reached fetch.
	SessionTTL time.Duration
	// Logger; nil discards.
	Logger *slog.Logger
}

// Router routes inbound requests to session actors.
type Router struct {
	mux *chi.Mux
	hub *session.Hub
	cfg Config
	log *slog.Logger
}

// New builds the router and its session hub.
func New(cfg Config) *Router {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	hub := session.NewHub(session.Options{
		UpstreamBaseURL: cfg.UpstreamBaseURL,
		HTTPClient:      cfg.HTTPClient,
		IdleTimeout:     cfg.IdleTimeout,
		Logger:          log,
	})
	if cfg.SessionTTL > 0 {
		hub = hub.WithTTL(cfg.SessionTTL)
	}

	rt := &Router{
		mux: chi.NewMux(),
		hub: hub,
		cfg: cfg,
		log: log,
	}

	rt.mux.Use(cors.New(cors.Options{
		AllowOriginFunc:  func(r *http.Request, origin string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           86400,
	}).Handler)

	rt.mux.Get("/health", rt.handleHealth)
	rt.mux.Get("/test/{key}", rt.handleTest)
	rt.mux.HandleFunc("/sse", rt.handleConnect)
	rt.mux.HandleFunc("/mcp", rt.handleConnect)
	rt.mux.HandleFunc("/{key}/sse", rt.handlePathKeyConnect)
	rt.mux.HandleFunc("/{key}/mcp", rt.handlePathKeyConnect)
	rt.mux.HandleFunc("/debug/{key}/sse", rt.handleDebug)
	rt.mux.NotFound(rt.handleUsage)

	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Hub exposes the session hub, mainly for tests and shutdown accounting.
func (rt *Router) Hub() *session.Hub { return rt.hub }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, errStr, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errStr,
		"message": message,
	})
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"server":    serverName,
		"version":   serverVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (rt *Router) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        serverName,
		"version":     serverVersion,
		"description": "Remote MCP server for the Limitless lifelog API",
		"endpoints": map[string]string{
			"sse (recommended)": "/{YOUR_LIMITLESS_API_KEY}/sse",
			"sse (legacy)":      "/sse?api_key=YOUR_LIMITLESS_API_KEY",
			"health":            "/health",
		},
		"usage":   "Connect your MCP client to /{YOUR_API_KEY}/sse or /sse?api_key=YOUR_API_KEY",
		"example": "https://limitless-mcp.example.com/53d7793f-2e9f-4db2-883c-1cd490eeba5b/sse",
	})
}

// handleTest is a one-shot upstream connectivity probe.
func (rt *Router) handleTest(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !auth.IsUUID(key) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid API key format",
			"usage": "GET /test/{API_KEY}",
		})
		return
	}

	var copts []limitless.Option
	if rt.cfg.UpstreamBaseURL != "" {
		copts = append(copts, limitless.WithBaseURL(rt.cfg.UpstreamBaseURL))
	}
	if rt.cfg.HTTPClient != nil {
		copts = append(copts, limitless.WithHTTPClient(rt.cfg.HTTPClient))
	}
	client := limitless.NewClient(key, copts...)

	resp, err := client.GetLifelogs(r.Context(), limitless.GetLifelogsParams{Limit: 1})
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	firstTitle := "No lifelogs"
	if len(resp.Data.Lifelogs) > 0 && resp.Data.Lifelogs[0].Title != "" {
		firstTitle = resp.Data.Lifelogs[0].Title
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"count":        resp.Meta.Lifelogs.Count,
			"hasLifelogs":  len(resp.Data.Lifelogs) > 0,
			"firstLifelog": firstTitle,
		},
	})
}

// handlePathKeyConnect validates the path key's shape before routing.
// Only path-derived keys are held to the UUID format; other sources are
// opaque and fail lazily at the upstream.
func (rt *Router) handlePathKeyConnect(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !auth.IsUUID(key) {
		writeError(w, http.StatusBadRequest, "Invalid API key format",
			"API key should be in UUID format (e.g. 53d7793f-2e9f-4db2-883c-1cd490eeba5b)")
		return
	}
	rt.connect(w, r, key)
}

// handleConnect serves the /sse and /mcp entry endpoints, where a key is
// required up front so no unauthenticated session state is ever created.
func (rt *Router) handleConnect(w http.ResponseWriter, r *http.Request) {
	key, source := auth.Resolve(r)
	if key == "" {
		writeError(w, http.StatusBadRequest, "Missing API key",
			"Provide your Limitless API key in the URL path /{API_KEY}/sse, "+
				"as a query parameter /sse?api_key=KEY, via the X-Limitless-API-Key "+
				"header, or as an Authorization bearer token")
		return
	}
	rt.log.Debug("resolved API key", "source", source.String())
	rt.connect(w, r, key)
}

// connect addresses a fresh session actor and forwards the request with
// the resolved key re-injected as a header, so the actor never re-parses
// the original URL.
func (rt *Router) connect(w http.ResponseWriter, r *http.Request, key string) {
	id := session.NewSessionID()
	actor := rt.hub.GetOrCreate(id)
	defer rt.hub.Remove(id)

	r.Header.Set(auth.HeaderAPIKey, key)
	rt.log.Info("session connected", "session_id", id, "path", r.URL.Path)

	if err := actor.Fetch(w, r); err != nil {
		rt.log.Error("session fetch failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error",
			"Failed to establish MCP connection")
		return
	}
	rt.log.Info("session closed", "session_id", id)
}
