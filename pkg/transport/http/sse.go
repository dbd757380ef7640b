package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/stream"
)

// writerState tracks the state of an SSE sink.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // Emit has been called at least once
	writerCompleted                    // Terminal event sent
)

// SSE event names.
const (
	eventPart  = "part"
	eventDone  = "done"
	eventError = "error"
)

// sseSink implements stream.Sink for HTTP clients. Every response part is
// written as one SSE event and flushed immediately:
//
//	event: part\n
//	data: {json}\n
//	\n
//
// The stream ends with a done or error event followed by:
//
//	data: [DONE]\n
//	\n
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ stream.Sink = (*sseSink)(nil)

func newSSESink(w http.ResponseWriter) *sseSink {
	return &sseSink{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// Emit implements stream.Sink.
func (s *sseSink) Emit(part api.ResponsePart) error {
	data, err := json.Marshal(part)
	if err != nil {
		return fmt.Errorf("failed to marshal %s part: %w", part.Kind(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEvent(eventPart, data)
}

// Done ends a successful stream.
func (s *sseSink) Done(state api.StreamState) error {
	data, _ := json.Marshal(struct {
		State api.StreamState `json:"state"`
	}{state})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeEvent(eventDone, data); err != nil {
		return err
	}
	return s.finish()
}

// Fail ends the stream with an error event. It is only used once the
// stream has started; before that errors are plain JSON responses.
func (s *sseSink) Fail(apiErr *api.APIError) error {
	data, err := json.Marshal(api.ErrorResponse{Error: apiErr})
	if err != nil {
		return fmt.Errorf("failed to marshal error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeEvent(eventError, data); err != nil {
		return err
	}
	return s.finish()
}

// hasStartedStreaming reports whether any event has been written.
func (s *sseSink) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}

// writeEvent must be called with mu held.
func (s *sseSink) writeEvent(name string, data []byte) error {
	if s.state == writerCompleted {
		return errors.New("cannot write event: stream is completed")
	}

	// First event: set SSE headers.
	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.state = writerStreaming
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// finish must be called with mu held.
func (s *sseSink) finish() error {
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write [DONE]: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush [DONE]: %w", err)
	}
	s.state = writerCompleted
	return nil
}
