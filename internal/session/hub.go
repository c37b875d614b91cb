package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultTTL reaps actors that were created but whose connection never
// reached fetch (for example, a client that dialed and vanished).
const defaultTTL = 5 * time.Minute

// NewSessionID returns a fresh 64-character hexadecimal identifier (256
// bits of randomness). A new identifier is generated for every connection,
// even for the same credential, so concurrent connections never collide.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") +
		strings.ReplaceAll(uuid.NewString(), "-", "")
}

type hubEntry struct {
	actor   *Actor
	created time.Time
}

// Hub addresses session actors by identifier. Addressing the same
// identifier twice returns the same actor instance.
type Hub struct {
	opts Options
	ttl  time.Duration

	mu     sync.Mutex
	actors map[string]*hubEntry
}

// NewHub creates a hub whose actors share the given options.
func NewHub(opts Options) *Hub {
	return &Hub{
		opts:   opts,
		ttl:    defaultTTL,
		actors: make(map[string]*hubEntry),
	}
}

// WithTTL overrides the reap age for idle, never-fetched actors.
func (h *Hub) WithTTL(ttl time.Duration) *Hub {
	h.ttl = ttl
	return h
}

// GetOrCreate returns the actor addressed by id, creating it if absent.
// Stale entries are swept opportunistically; there is no background task
// to leak. Only actors that never reached fetch are reaped — an actor
// mid-stream stays addressable no matter how long its stream lives.
func (h *Hub) GetOrCreate(id string) *Actor {
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	for key, e := range h.actors {
		if !e.actor.Fetched() && now.Sub(e.created) > h.ttl {
			delete(h.actors, key)
		}
	}

	e := h.actors[id]
	if e == nil {
		e = &hubEntry{actor: NewActor(id, h.opts), created: now}
		h.actors[id] = e
	}
	return e.actor
}

// Remove evicts an actor once its stream has closed. Session identifiers
// are never reused, so removal cannot race a second connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.actors, id)
}

// Len reports the number of live actors.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.actors)
}
