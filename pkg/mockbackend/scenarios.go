package mockbackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/chatbridge/pkg/provider"
)

// streamWriter writes chat.completion.chunk events.
type streamWriter struct {
	w      http.ResponseWriter
	r      *http.Request
	rc     *http.ResponseController
	model  string
	usage  bool
	tokens int
}

func newStreamWriter(w http.ResponseWriter, r *http.Request, req provider.ChatRequest) (*streamWriter, error) {
	model := req.Model
	if model == "" {
		return nil, errors.New("model is required")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	return &streamWriter{
		w:     w,
		r:     r,
		rc:    http.NewResponseController(w),
		model: model,
		usage: req.StreamOptions != nil && req.StreamOptions.IncludeUsage,
	}, nil
}

func (s *streamWriter) chunk(c provider.StreamChunk) {
	c.ID = "gen-mock"
	c.Model = s.model
	data, _ := json.Marshal(c)
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	s.rc.Flush()
}

func (s *streamWriter) delta(d provider.ChunkDelta) {
	s.tokens++
	s.chunk(provider.StreamChunk{Choices: []provider.ChunkChoice{{Delta: d}}})
}

func (s *streamWriter) text(fragments ...string) {
	for _, f := range fragments {
		s.delta(provider.ChunkDelta{Content: &f})
	}
}

func (s *streamWriter) reasoning(fragments ...string) {
	for _, f := range fragments {
		s.delta(provider.ChunkDelta{Reasoning: &f})
	}
}

// comment writes an SSE keep-alive comment, as OpenRouter does while a
// request is queued.
func (s *streamWriter) comment() {
	fmt.Fprint(s.w, ": OPENROUTER PROCESSING\n\n")
	s.rc.Flush()
}

func (s *streamWriter) finish(reason string) {
	c := provider.StreamChunk{Choices: []provider.ChunkChoice{{FinishReason: &reason}}}
	if s.usage {
		c.Usage = &provider.Usage{PromptTokens: 10, CompletionTokens: s.tokens, TotalTokens: 10 + s.tokens}
	}
	s.chunk(c)
	fmt.Fprint(s.w, "data: [DONE]\n\n")
	s.rc.Flush()
}

// scenario is one canned response.
type scenario struct {
	name string
	run  func(sw *streamWriter, req *provider.ChatRequest, delay time.Duration)
}

func pick(prompt string, hasTools bool) scenario {
	switch {
	case strings.Contains(prompt, "fail"):
		return scenario{"error", errorChunk}
	case strings.Contains(prompt, "say nothing"):
		return scenario{"empty", empty}
	case strings.Contains(prompt, "think"):
		return scenario{"reasoning", reasoning}
	case strings.Contains(prompt, "broken args") && hasTools:
		return scenario{"broken-tool-call", brokenToolCall}
	case strings.Contains(prompt, "weather") && hasTools:
		return scenario{"tool-call", toolCall}
	case strings.Contains(prompt, "slow"):
		return scenario{"slow", slow}
	default:
		return scenario{"text", greeting}
	}
}

func greeting(sw *streamWriter, req *provider.ChatRequest, _ time.Duration) {
	sw.delta(provider.ChunkDelta{Role: "assistant"})
	sw.text("Hello", ", nice", " day", "!")
	sw.finish("stop")
}

func reasoning(sw *streamWriter, req *provider.ChatRequest, _ time.Duration) {
	sw.comment()
	sw.reasoning("Let me ", "think about ", "this.")
	sw.text("The answer ", "is 42.")
	sw.finish("stop")
}

// toolCall streams one call with its arguments split across chunks. When
// the conversation already carries a tool result, the model answers with
// text instead so that agent loops terminate.
func toolCall(sw *streamWriter, req *provider.ChatRequest, _ time.Duration) {
	if last := req.Messages[len(req.Messages)-1]; last.Role == "tool" {
		sw.text("It is sunny ", "in Paris.")
		sw.finish("stop")
		return
	}

	name := req.Tools[0].Function.Name
	sw.delta(provider.ChunkDelta{Role: "assistant", ToolCalls: []provider.ChunkToolCall{{
		Index: 0, ID: "call_mock_1", Type: "function",
		Function: provider.ChunkFunctionCall{Name: name},
	}}})
	for _, frag := range []string{`{"loc`, `ation":`, ` "Paris"`, `}`} {
		sw.delta(provider.ChunkDelta{ToolCalls: []provider.ChunkToolCall{{
			Index:    0,
			Function: provider.ChunkFunctionCall{Arguments: frag},
		}}})
	}
	sw.finish("tool_calls")
}

func brokenToolCall(sw *streamWriter, req *provider.ChatRequest, _ time.Duration) {
	sw.delta(provider.ChunkDelta{ToolCalls: []provider.ChunkToolCall{{
		Index: 0, ID: "call_mock_broken", Type: "function",
		Function: provider.ChunkFunctionCall{Name: req.Tools[0].Function.Name, Arguments: `{"location": "Par`},
	}}})
	sw.finish("tool_calls")
}

func errorChunk(sw *streamWriter, req *provider.ChatRequest, _ time.Duration) {
	sw.text("Partial ")
	sw.chunk(provider.StreamChunk{Error: &provider.ChunkError{Message: "Upstream provider overloaded", Code: 502}})
}

func empty(sw *streamWriter, req *provider.ChatRequest, _ time.Duration) {
	sw.delta(provider.ChunkDelta{Role: "assistant"})
	sw.finish("stop")
}

// slow stops early when the client goes away.
func slow(sw *streamWriter, req *provider.ChatRequest, delay time.Duration) {
	for i := 0; i < 100; i++ {
		select {
		case <-sw.r.Context().Done():
			return
		case <-time.After(delay):
		}
		sw.text(fmt.Sprintf("tick %d ", i))
	}
	sw.finish("stop")
}
