package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"gwi.com/chat-memory/internal/core"
)

// eventStream writes session events as server-sent events. Headers go out
// with the first event, so a request that fails before producing any can
// still be answered with a plain error status.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported")
	}
	return &eventStream{w: w, flusher: flusher}, nil
}

func (s *eventStream) send(ev core.Event) {
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("failed to marshal sse payload: %v", err)
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		log.Printf("failed to write sse event: %v", err)
		return
	}
	s.flusher.Flush()
}
