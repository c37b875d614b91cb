// Package session hosts the per-connection actors that bridge inbound
// protocol messages to tool dispatch and tool results back to SSE frames.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/lifelog-labs/limitless-mcp-remote/internal/auth"
	"github.com/lifelog-labs/limitless-mcp-remote/internal/limitless"
	"github.com/lifelog-labs/limitless-mcp-remote/internal/sse"
)

// ErrSessionFailed marks an actor whose initialization failed; the actor
// refuses all further requests.
var ErrSessionFailed = errors.New("session initialization failed")

// defaultIdleTimeout closes a stream that was opened without an inbound
// body and never produced traffic.
const defaultIdleTimeout = 15 * time.Second

// Options configures an Actor. The zero value is usable and talks to the
// production Limitless API.
type Options struct {
	// APIKey supplied at construction time. A key arriving later in a
	// fetch header takes the same slot; whichever is recorded first wins.
	APIKey string
	// UpstreamBaseURL overrides the Limitless endpoint.
	UpstreamBaseURL string
	// HTTPClient used for upstream calls.
	HTTPClient *http.Client
	// IdleTimeout bounds a bodyless stream's lifetime.
	IdleTimeout time.Duration
	// Logger for the actor; a nil logger discards.
	Logger *slog.Logger
}

// Actor owns one logical connection's state: at most one credential, at
// most one data-access client, one tool server. The client, once built, is
// never reconstructed; a session with no credential at initialization time
// stays permanently unauthenticated and every tool call reports that.
type Actor struct {
	id   string
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	apiKey  string
	fetched bool

	initOnce sync.Once
	initErr  error
	client   *limitless.Client
	srv      *server.MCPServer
}

// NewActor creates an actor for one session identifier.
func NewActor(id string, opts Options) *Actor {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	return &Actor{
		id:   id,
		opts: opts,
		log:  log.With("session_id", id),
	}
}

// ID returns the session identifier.
func (a *Actor) ID() string { return a.id }

// Client returns the data-access client, or nil while unauthenticated.
func (a *Actor) Client() *limitless.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

// Fetched reports whether a stream has ever been served on this actor.
// The hub's TTL sweep only reaps actors that never got this far.
func (a *Actor) Fetched() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetched
}

func (a *Actor) markFetched() {
	a.mu.Lock()
	a.fetched = true
	a.mu.Unlock()
}

// recordKey stashes a credential discovered during fetch. Only the first
// key is kept: once a session leaves the uninitialized state there is no
// way back, so a later, different key cannot take effect.
func (a *Actor) recordKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.apiKey == "" {
		a.apiKey = key
	}
}

// initialize runs exactly once, before the first message is dispatched.
// The credential is resolved from the value stashed by an earlier fetch,
// then from the constructor-supplied key. Tools are always registered;
// without a credential every handler reports "not initialized" instead of
// crashing the actor.
func (a *Actor) initialize() {
	defer func() {
		if r := recover(); r != nil {
			a.initErr = fmt.Errorf("session initialization: %v", r)
			a.log.Error("session initialization failed", "panic", r)
		}
	}()

	a.mu.Lock()
	key := a.apiKey
	a.mu.Unlock()
	if key == "" {
		key = a.opts.APIKey
	}

	if key != "" {
		var copts []limitless.Option
		if a.opts.UpstreamBaseURL != "" {
			copts = append(copts, limitless.WithBaseURL(a.opts.UpstreamBaseURL))
		}
		if a.opts.HTTPClient != nil {
			copts = append(copts, limitless.WithHTTPClient(a.opts.HTTPClient))
		}
		client := limitless.NewClient(key, copts...)
		a.mu.Lock()
		a.apiKey = key
		a.client = client
		a.mu.Unlock()
		a.log.Info("session authenticated")
	} else {
		a.log.Warn("no API key found, session stays unauthenticated")
	}

	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	registerTools(s, a)
	a.srv = s
}

// Fetch serves one streaming exchange on this actor. A credential carried
// in the request header is recorded before initialization so a key that
// arrives after actor construction still lands in time for first use.
func (a *Actor) Fetch(w http.ResponseWriter, r *http.Request) error {
	a.markFetched()
	if key := r.Header.Get(auth.HeaderAPIKey); key != "" {
		a.recordKey(key)
	}

	a.initOnce.Do(a.initialize)
	if a.initErr != nil {
		return ErrSessionFailed
	}

	stream := sse.NewStream(w, a.log)
	stream.Open()
	defer stream.Close()

	if r.ContentLength == 0 {
		// No inbound body: keep the stream well-formed, then close it
		// after the idle timeout instead of hanging indefinitely.
		a.log.Debug("no request body, closing after idle timeout")
		select {
		case <-time.After(a.opts.IdleTimeout):
		case <-r.Context().Done():
		}
		return nil
	}

	// Dispatch does not hold up the read loop: message N+1 may start, and
	// finish, before message N's upstream call returns. Callers correlate
	// results by id, not arrival order. The detached context keeps
	// in-flight upstream calls running even when the peer is gone; the
	// wait group holds the close until their frames have been attempted.
	dispatchCtx := context.WithoutCancel(r.Context())
	var inflight sync.WaitGroup
	err := sse.ScanMessages(r.Body, a.log, func(msg json.RawMessage) {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			a.dispatch(dispatchCtx, stream, msg)
		}()
	})
	inflight.Wait()
	if err != nil {
		a.log.Warn("inbound stream ended with error", "error", err)
	}
	return nil
}

// dispatch interprets one protocol message and frames the response, if
// any. Notifications produce no response message.
func (a *Actor) dispatch(ctx context.Context, stream *sse.Stream, msg json.RawMessage) {
	resp := a.srv.HandleMessage(ctx, msg)
	if resp == nil {
		return
	}
	if err := stream.Send(resp); err != nil {
		a.log.Warn("failed to send response frame", "error", err)
	}
}
