package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/lferraz/leadscout/internal/types"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event. The id field carries the global sequence so
// a client can resume with ?from=<id+1> after a disconnect.
func (s *SSEWriter) WriteEvent(ev types.Event) error {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "id: %d\n", ev.Seq); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\n", ev.Name); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	data, _ := json.Marshal(map[string]string{"error": message})
	fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", data) //nolint:errcheck
	s.flusher.Flush()
}

// handleEventStream streams a run's events over SSE. Persisted events with
// sequence >= from are replayed first, then the stream follows live events
// until the client disconnects.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("run_id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return
	}

	var fromSeq int64
	if raw := r.URL.Query().Get("from"); raw != "" {
		fromSeq, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid from cursor")
			return
		}
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	sub := s.broadcaster.Subscribe(r.Context(), runID, fromSeq)
	defer sub.Close()

	for ev := range sub.Events() {
		if err := sse.WriteEvent(ev); err != nil {
			return // client gone
		}
	}
}
