package openaicompat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// collectEvents runs ParseSSEStream and returns all events.
func collectEvents(t *testing.T, sseData string) []provider.ChunkEvent {
	t.Helper()
	ch := make(chan provider.ChunkEvent, 64)

	go func() {
		defer close(ch)
		ParseSSEStream(context.Background(), strings.NewReader(sseData), ch)
	}()

	var events []provider.ChunkEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestParseSSEStream_TextDeltas(t *testing.T) {
	sseData := `: OPENROUTER PROCESSING

data: {"id":"gen-1","model":"openai/gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"},"finish_reason":null}]}

data: {"id":"gen-1","model":"openai/gpt-4o","choices":[{"index":0,"delta":{"content":" world"},"finish_reason":null}]}

data: {"id":"gen-1","model":"openai/gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: [DONE]
`
	events := collectEvents(t, sseData)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if got := events[0].Chunk.Choices[0].Delta.Text(); got != "Hello" {
		t.Errorf("first delta = %q, want %q", got, "Hello")
	}
	if got := events[1].Chunk.Choices[0].Delta.Text(); got != " world" {
		t.Errorf("second delta = %q, want %q", got, " world")
	}
	if fr := events[2].Chunk.Choices[0].FinishReason; fr == nil || *fr != "stop" {
		t.Errorf("finish_reason = %v, want stop", fr)
	}
}

func TestParseSSEStream_NoSpaceAfterColon(t *testing.T) {
	events := collectEvents(t, "data:{\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n\ndata:[DONE]\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if got := events[0].Chunk.Choices[0].Delta.Text(); got != "x" {
		t.Errorf("delta = %q, want %q", got, "x")
	}
}

func TestParseSSEStream_StopsAtDone(t *testing.T) {
	sseData := `data: {"choices":[{"index":0,"delta":{"content":"a"}}]}

data: [DONE]

data: {"choices":[{"index":0,"delta":{"content":"b"}}]}
`
	events := collectEvents(t, sseData)
	if len(events) != 1 {
		t.Fatalf("expected 1 event before [DONE], got %d", len(events))
	}
}

func TestParseSSEStream_ToolCallFragments(t *testing.T) {
	sseData := `data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"f","arguments":"{\"x\":"}}]}}]}

data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"1}"}}]}}]}

data: [DONE]
`
	events := collectEvents(t, sseData)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	first := events[0].Chunk.Choices[0].Delta.ToolCalls[0]
	if first.ID != "call_a" || first.Function.Name != "f" || first.Function.Arguments != `{"x":` {
		t.Errorf("unexpected first fragment: %+v", first)
	}
	second := events[1].Chunk.Choices[0].Delta.ToolCalls[0]
	if second.ID != "" || second.Function.Arguments != "1}" {
		t.Errorf("unexpected second fragment: %+v", second)
	}
}

func TestParseSSEStream_Reasoning(t *testing.T) {
	sseData := `data: {"choices":[{"index":0,"delta":{"reasoning":"think"}}]}

data: {"choices":[{"index":0,"delta":{"reasoning_content":"deep"}}]}

data: [DONE]
`
	events := collectEvents(t, sseData)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if got := events[0].Chunk.Choices[0].Delta.ReasoningText(); got != "think" {
		t.Errorf("reasoning = %q", got)
	}
	if got := events[1].Chunk.Choices[0].Delta.ReasoningText(); got != "deep" {
		t.Errorf("reasoning_content = %q", got)
	}
}

func TestParseSSEStream_ErrorChunkStopsStream(t *testing.T) {
	sseData := `data: {"error":{"message":"rate limited","code":429},"choices":[]}

data: {"choices":[{"index":0,"delta":{"content":"never"}}]}

data: [DONE]
`
	events := collectEvents(t, sseData)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Chunk == nil || events[0].Chunk.Error == nil {
		t.Fatalf("expected error chunk, got %+v", events[0])
	}
	if events[0].Chunk.Error.Message != "rate limited" {
		t.Errorf("message = %q", events[0].Chunk.Error.Message)
	}
}

func TestParseSSEStream_MalformedJSON(t *testing.T) {
	events := collectEvents(t, "data: {not json\n\ndata: [DONE]\n")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	var apiErr *api.APIError
	if !errors.As(events[0].Err, &apiErr) {
		t.Fatalf("expected *api.APIError, got %T", events[0].Err)
	}
	if apiErr.Type != api.ErrorTypeProtocol {
		t.Errorf("type = %q, want %q", apiErr.Type, api.ErrorTypeProtocol)
	}
}

func TestParseSSEStream_EOFWithoutDone(t *testing.T) {
	events := collectEvents(t, `data: {"choices":[{"index":0,"delta":{"content":"partial"}}]}`+"\n")
	if len(events) != 1 || events[0].Err != nil {
		t.Fatalf("expected a single chunk and no error, got %+v", events)
	}
}

func TestParseSSEStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan provider.ChunkEvent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ParseSSEStream(ctx, strings.NewReader("data: {\"choices\":[]}\n\n"), ch)
	}()
	<-done

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event after cancellation: %+v", ev)
	default:
	}
}
