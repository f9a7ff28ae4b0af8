package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// SSEWriter streams run progress as Server-Sent Events.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter sets the event-stream headers on w.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends one progress event. seq is the event's position in the
// run's history; clients send it back as Last-Event-ID to resume.
func (s *SSEWriter) WriteEvent(seq int, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteComplete sends the terminal event of a run.
func (s *SSEWriter) WriteComplete(runID string, success bool, value any) error {
	payload, err := json.Marshal(map[string]any{
		"run_id":  runID,
		"success": success,
		"result":  value,
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: complete\ndata: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// resumeCursor returns the index of the first event not yet seen by a client
// reconnecting with Last-Event-ID.
func resumeCursor(r *http.Request) int {
	last, err := strconv.Atoi(r.Header.Get("Last-Event-ID"))
	if err != nil || last < 0 {
		return 0
	}
	return last + 1
}
