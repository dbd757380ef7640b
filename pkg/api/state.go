package api

import "fmt"

// StreamState is the lifecycle state of one streamed response.
type StreamState string

const (
	StreamIdle      StreamState = "idle"
	StreamStreaming StreamState = "streaming"
	StreamCompleted StreamState = "completed"
	StreamCancelled StreamState = "cancelled"
	StreamFailed    StreamState = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s StreamState) Terminal() bool {
	return s == StreamCompleted || s == StreamCancelled || s == StreamFailed
}

// ValidateStreamTransition checks whether a stream state transition is valid.
// Streams move Idle -> Streaming -> {Completed, Cancelled, Failed}. A stream
// may also fail or be cancelled before the first chunk arrives. Terminal
// states do not allow outgoing transitions.
func ValidateStreamTransition(from, to StreamState) *APIError {
	valid := map[StreamState][]StreamState{
		StreamIdle:      {StreamStreaming, StreamCancelled, StreamFailed},
		StreamStreaming: {StreamCompleted, StreamCancelled, StreamFailed},
	}

	for _, s := range valid[from] {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("state",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
