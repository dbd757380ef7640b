package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// maxSSELine bounds a single SSE line. Chunks carrying large tool call
// argument fragments can exceed bufio's 64 KiB default.
const maxSSELine = 1 << 20

// ParseSSEStream reads Chat Completions SSE chunks from the given reader,
// decodes each one, and sends it on ch. The channel is NOT closed by this
// function; the caller is responsible for closing it.
//
// SSE format expected:
//
//	: OPENROUTER PROCESSING\n
//	\n
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Comment lines are keep-alives and are ignored. A payload that is not valid
// JSON terminates the stream with a protocol error, as does a chunk carrying
// an error object (the chunk itself is delivered first). Context
// cancellation stops reading immediately.
func ParseSSEStream(ctx context.Context, body io.Reader, ch chan<- provider.ChunkEvent) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// Lines that don't carry data are ignored (blank separators,
		// ":" comments, event/id fields).
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimPrefix(payload, " ")

		if payload == "[DONE]" {
			return
		}

		debug.Trace("streaming", "sse chunk", "data", debug.Truncate(payload, 500))

		var chunk provider.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			send(ctx, ch, provider.ChunkEvent{
				Err: api.NewProtocolError("malformed stream chunk: " + err.Error()),
			})
			return
		}

		if !send(ctx, ch, provider.ChunkEvent{Chunk: &chunk}) {
			return
		}
		if chunk.Error != nil {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		// Context cancellation is not an error from our perspective.
		if ctx.Err() != nil {
			return
		}
		send(ctx, ch, provider.ChunkEvent{
			Err: api.NewTransportError(0, "stream read error: "+err.Error()),
		})
	}
}

// send delivers ev unless ctx is cancelled first.
func send(ctx context.Context, ch chan<- provider.ChunkEvent, ev provider.ChunkEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
