package apihttp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mediavault/internal/domain/ports"
)

// handleEvents serves GET /api/events: a text/event-stream subscription to
// the Event Bus (spec.md §4.11). There is no websocket hub on this surface
// — unlike the teacher's player/admin push channel, spec.md's event feed is
// one-directional (server to client only), so a plain flushed SSE response
// carries it without gorilla/websocket's handshake and frame machinery.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "event bus not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	sub := s.bus.Subscribe(64)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-sub.Events():
			if !open {
				return
			}
			if err := writeSSEEvent(w, evt); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt ports.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Category, payload)
	return err
}
