package adapter

import (
	"strings"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// RequestOptions carries settings applied to every outgoing request.
type RequestOptions struct {
	// SystemPrompt replaces all system messages when non-blank.
	SystemPrompt string

	// Reasoning is forwarded as the "reasoning" object when set.
	Reasoning *provider.ReasoningDirective

	// IncludeUsage asks for token usage on the final chunk.
	IncludeUsage bool
}

// BuildRequest translates a host chat request into a streaming provider
// request. It fails with an empty-request error when no message survives
// translation, before any network call is made.
func (a Adapter) BuildRequest(req *api.ChatRequest, opts RequestOptions) (*provider.ChatRequest, error) {
	if req == nil {
		return nil, api.NewInvalidRequestError("", "request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, api.NewInvalidRequestError("model", "model is required")
	}

	msgs := a.ToProviderMessages(req.Messages)
	if len(msgs) == 0 {
		return nil, api.NewEmptyRequestError("request contains no supported content")
	}
	msgs = ApplySystemPrompt(msgs, opts.SystemPrompt)

	out := &provider.ChatRequest{
		Model:       a.ToProviderModelID(req.Model),
		Messages:    msgs,
		Stream:      true,
		Reasoning:   opts.Reasoning,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	if tools := a.ToProviderTools(req.Tools); len(tools) > 0 {
		out.Tools = tools
		out.ToolChoice = string(api.ToolModeAuto)
		if req.ToolMode == api.ToolModeRequired {
			out.ToolChoice = string(api.ToolModeRequired)
		}
	}

	if opts.IncludeUsage {
		out.StreamOptions = &provider.StreamOptions{IncludeUsage: true}
	}

	return out, nil
}
