package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/lifelog-labs/limitless-mcp-remote/internal/sse"
)

// handleDebug opens an SSE stream that echoes every inbound chunk back as
// a frame. It speaks no protocol; it exists to troubleshoot the transport
// path itself.
func (rt *Router) handleDebug(w http.ResponseWriter, r *http.Request) {
	rt.log.Info("debug stream opened", "path", r.URL.Path)

	stream := sse.NewStream(w, rt.log)
	stream.Open()
	defer stream.Close()

	if r.ContentLength == 0 {
		_ = stream.SendData(`{"test": "No request body received"}`)
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
		return
	}

	buf := make([]byte, 4096)
	for {
		n, err := r.Body.Read(buf)
		if n > 0 {
			// Newlines in the echo would break SSE framing.
			text := strings.ReplaceAll(string(buf[:n]), "\n", `\n`)
			if sendErr := stream.SendData("Received: " + text); sendErr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
