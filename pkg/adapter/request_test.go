package adapter

import (
	"errors"
	"testing"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/provider"
)

func userText(s string) api.ChatMessage {
	return api.ChatMessage{Role: api.RoleUser, Content: []api.ContentPart{api.TextPart{Value: s}}}
}

func TestBuildRequest(t *testing.T) {
	a := New(DefaultModelPrefix)
	maxTokens := 256
	req := &api.ChatRequest{
		Model:     "openrouter/openai/gpt-4o",
		Messages:  []api.ChatMessage{userText("hello")},
		Tools:     []api.ToolDefinition{{Name: "lookup"}},
		MaxTokens: &maxTokens,
	}
	reasoning := &provider.ReasoningDirective{Effort: "high"}

	out, err := a.BuildRequest(req, RequestOptions{SystemPrompt: "Be nice.", Reasoning: reasoning, IncludeUsage: true})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if out.Model != "openai/gpt-4o" {
		t.Errorf("model = %q", out.Model)
	}
	if !out.Stream {
		t.Error("stream must be true")
	}
	if out.ToolChoice != "auto" {
		t.Errorf("tool_choice = %v, want auto", out.ToolChoice)
	}
	if len(out.Messages) != 2 || out.Messages[0].Role != "system" {
		t.Errorf("system prompt not applied: %+v", out.Messages)
	}
	if out.Reasoning != reasoning {
		t.Error("reasoning directive not forwarded")
	}
	if out.StreamOptions == nil || !out.StreamOptions.IncludeUsage {
		t.Error("stream_options.include_usage not set")
	}
	if out.MaxTokens == nil || *out.MaxTokens != 256 {
		t.Error("max_tokens not forwarded")
	}
}

func TestBuildRequest_NoToolsNoChoice(t *testing.T) {
	out, err := Adapter{}.BuildRequest(&api.ChatRequest{Model: "m", Messages: []api.ChatMessage{userText("x")}}, RequestOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if out.ToolChoice != nil || out.Tools != nil {
		t.Errorf("expected no tools, got %+v / %v", out.Tools, out.ToolChoice)
	}
	if out.StreamOptions != nil {
		t.Error("stream_options should be omitted")
	}
}

func TestBuildRequest_RequiredToolMode(t *testing.T) {
	out, err := Adapter{}.BuildRequest(&api.ChatRequest{
		Model:    "m",
		Messages: []api.ChatMessage{userText("x")},
		Tools:    []api.ToolDefinition{{Name: "t"}},
		ToolMode: api.ToolModeRequired,
	}, RequestOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if out.ToolChoice != "required" {
		t.Errorf("tool_choice = %v, want required", out.ToolChoice)
	}
}

func TestBuildRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      *api.ChatRequest
		opts     RequestOptions
		wantType api.ErrorType
	}{
		{"nil request", nil, RequestOptions{}, api.ErrorTypeInvalidRequest},
		{"missing model", &api.ChatRequest{Messages: []api.ChatMessage{userText("x")}}, RequestOptions{}, api.ErrorTypeInvalidRequest},
		{"no messages", &api.ChatRequest{Model: "m"}, RequestOptions{}, api.ErrorTypeEmptyRequest},
		{
			"only unsupported content",
			&api.ChatRequest{Model: "m", Messages: []api.ChatMessage{{
				Role:    api.RoleUser,
				Content: []api.ContentPart{api.ImagePart{MimeType: "application/zip"}},
			}}},
			RequestOptions{SystemPrompt: "still empty"},
			api.ErrorTypeEmptyRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Adapter{}.BuildRequest(tt.req, tt.opts)
			var apiErr *api.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *api.APIError, got %v", err)
			}
			if apiErr.Type != tt.wantType {
				t.Errorf("type = %q, want %q", apiErr.Type, tt.wantType)
			}
		})
	}
}
