package provider

import "context"

// Transport abstracts the upstream chat-completion API. Each implementation
// handles its own wire protocol; all of them exchange the types in this
// package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// No implementation retries: a single failure terminates the call.
type Transport interface {
	// Name returns the transport identifier (e.g., "openaicompat").
	Name() string

	// ListModels returns the upstream model records. Errors carry the
	// upstream status and message when available.
	ListModels(ctx context.Context, apiKey string) ([]Model, error)

	// StreamChat opens a streaming chat completion. The returned channel
	// receives chunks in arrival order and is closed by the transport when
	// the stream ends, fails, or ctx is cancelled. A failure after the
	// stream opened is delivered as a ChunkEvent with Err set, after which
	// the channel is closed.
	StreamChat(ctx context.Context, apiKey string, req *ChatRequest) (<-chan ChunkEvent, error)

	// Close releases transport resources (HTTP clients, connections).
	Close() error
}

// ChunkEvent is one element of a chat stream: a decoded chunk or a
// terminal error.
type ChunkEvent struct {
	Chunk *StreamChunk
	Err   error
}
