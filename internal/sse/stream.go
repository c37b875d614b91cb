// Package sse frames outbound protocol messages as Server-Sent Events and
// splits an inbound byte stream into discrete JSON messages.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// Stream is the write side of one SSE response. It has two states, open and
// closed; closed is terminal. Sends after close are logged no-ops rather
// than errors: the read loop and in-flight dispatches race the close, and a
// late result frame is an accepted drop, not a fault.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	log     *slog.Logger

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewStream wraps a ResponseWriter. Call Open before the first Send.
func NewStream(w http.ResponseWriter, log *slog.Logger) *Stream {
	flusher, _ := w.(http.Flusher)
	return &Stream{
		w:       w,
		flusher: flusher,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Open commits the SSE response headers. The stream is well-formed from
// this point even if no frame is ever written.
func (s *Stream) Open() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	s.w.WriteHeader(http.StatusOK)
	s.flush()
}

// Send serializes msg to JSON and writes it as a single frame:
// "data: <json>\n\n". The trailing blank line terminates the frame.
func (s *Stream) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return s.SendData(string(data))
}

// SendData writes one frame with a preserialized payload.
func (s *Stream) SendData(payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Debug("dropping frame after stream close", "bytes", len(payload))
		return nil
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Close transitions to the terminal state. Safe to call more than once and
// from any goroutine.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}

// Done is closed when the stream has been closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

func (s *Stream) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
