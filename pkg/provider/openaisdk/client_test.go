package openaisdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/provider"
)

func collect(t *testing.T, ch <-chan provider.ChunkEvent) []provider.ChunkEvent {
	t.Helper()
	var events []provider.ChunkEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestStreamChat_ForwardsBodyAndDecodesChunks(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-sdk" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "chatbridge" {
			t.Errorf("X-Title = %q", got)
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"gen-1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"reasoning\":\"hmm\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"gen-1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(provider.Config{BaseURL: srv.URL, Title: "chatbridge"})
	ch, err := c.StreamChat(context.Background(), "sk-sdk", &provider.ChatRequest{
		Model:      "openai/gpt-4o",
		Messages:   []provider.ChatMessage{{Role: "user", Content: "hello"}},
		Tools:      []provider.ChatTool{{Type: "function", Function: provider.ChatFunctionDef{Name: "f", Parameters: map[string]any{}}}},
		ToolChoice: "auto",
		Reasoning:  &provider.ReasoningDirective{Effort: "low"},
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	events := collect(t, ch)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}
	if got := events[0].Chunk.Choices[0].Delta.ReasoningText(); got != "hmm" {
		t.Errorf("reasoning = %q", got)
	}
	if got := events[1].Chunk.Choices[0].Delta.Text(); got != "hi" {
		t.Errorf("text = %q", got)
	}

	if body["model"] != "openai/gpt-4o" || body["stream"] != true || body["tool_choice"] != "auto" {
		t.Errorf("unexpected body: %v", body)
	}
	if r, ok := body["reasoning"].(map[string]any); !ok || r["effort"] != "low" {
		t.Errorf("reasoning not forwarded: %v", body["reasoning"])
	}
	if msgs, ok := body["messages"].([]any); !ok || len(msgs) != 1 {
		t.Errorf("messages not forwarded: %v", body["messages"])
	}
}

func TestStreamChat_HTTPErrorNoRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
	}))
	defer srv.Close()

	c := NewClient(provider.Config{BaseURL: srv.URL})
	_, err := c.StreamChat(context.Background(), "k", &provider.ChatRequest{Model: "m"})

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.APIError, got %T (%v)", err, err)
	}
	if apiErr.Type != api.ErrorTypeTransport || apiErr.Status != http.StatusInternalServerError {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1", n)
	}
}

func TestStreamChat_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"No auth credentials found","code":401}}`)
	}))
	defer srv.Close()

	_, err := NewClient(provider.Config{BaseURL: srv.URL}).StreamChat(context.Background(), "", &provider.ChatRequest{Model: "m"})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "unauthorized" {
		t.Fatalf("expected unauthorized transport error, got %v", err)
	}
}

func TestStreamChat_InStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"g\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"a\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"rate limited\",\"code\":429}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	ch, err := NewClient(provider.Config{BaseURL: srv.URL}).StreamChat(context.Background(), "k", &provider.ChatRequest{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, ch)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	last := events[1]
	if last.Chunk == nil || last.Chunk.Error == nil || last.Chunk.Error.Message != "rate limited" {
		t.Errorf("expected error chunk, got %+v", last)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"x/y","supported_parameters":["tools"],"pricing":{"prompt":"0"}}]}`)
	}))
	defer srv.Close()

	models, err := NewClient(provider.Config{BaseURL: srv.URL}).ListModels(context.Background(), "k")
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x/y" || len(models[0].SupportedParameters) != 1 {
		t.Errorf("unexpected models: %+v", models)
	}
}

func TestInStreamError(t *testing.T) {
	if _, ok := inStreamError(errors.New("dial tcp: refused")); ok {
		t.Error("plain errors must not be treated as in-stream errors")
	}
	ce, ok := inStreamError(errors.New(streamErrorPrefix + `{"message":"boom","code":"server_error"}`))
	if !ok || ce.Message != "boom" || ce.Code != "server_error" {
		t.Errorf("unexpected chunk error: %+v", ce)
	}
}
