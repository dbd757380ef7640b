package provider

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Chat Completions wire types for an OpenAI-compatible, OpenRouter-style
// upstream API.

// ChatRequest is the request body for /chat/completions.
type ChatRequest struct {
	Model         string              `json:"model"`
	Messages      []ChatMessage       `json:"messages"`
	Tools         []ChatTool          `json:"tools,omitempty"`
	ToolChoice    any                 `json:"tool_choice,omitempty"`
	Stream        bool                `json:"stream"`
	StreamOptions *StreamOptions      `json:"stream_options,omitempty"`
	Reasoning     *ReasoningDirective `json:"reasoning,omitempty"`
	MaxTokens     *int                `json:"max_tokens,omitempty"`
	Temperature   *float64            `json:"temperature,omitempty"`
}

// StreamOptions controls streaming behavior.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ReasoningDirective asks the upstream to return reasoning tokens.
type ReasoningDirective struct {
	Effort    string `json:"effort,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	Exclude   bool   `json:"exclude,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

// ChatMessage represents a message in the Chat Completions format.
// Content is a string, a []ContentPart, or nil.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

// ContentPart is an element of a multi-part message content array.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URI.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatToolCall represents a tool call in an assistant message.
type ChatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ChatFunctionCall `json:"function"`
}

// ChatFunctionCall holds function name and JSON-encoded arguments.
type ChatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatTool represents a tool definition.
type ChatTool struct {
	Type     string          `json:"type"`
	Function ChatFunctionDef `json:"function"`
}

// ChatFunctionDef is a function definition for a tool.
type ChatFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// StreamChunk is a single SSE chunk in a streaming response. Error is set
// when the upstream reports a failure in-band.
type StreamChunk struct {
	ID      string        `json:"id,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
	Error   *ChunkError   `json:"error,omitempty"`
}

// ChunkChoice represents a streaming choice delta.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta holds incremental content in a streaming chunk.
type ChunkDelta struct {
	Role             string          `json:"role,omitempty"`
	Content          *string         `json:"content,omitempty"`
	Reasoning        *string         `json:"reasoning,omitempty"`
	ReasoningContent *string         `json:"reasoning_content,omitempty"`
	ToolCalls        []ChunkToolCall `json:"tool_calls,omitempty"`
}

// ReasoningText returns the reasoning fragment carried by the delta.
// OpenRouter sends "reasoning"; DeepSeek-style backends send
// "reasoning_content".
func (d ChunkDelta) ReasoningText() string {
	if d.Reasoning != nil && *d.Reasoning != "" {
		return *d.Reasoning
	}
	if d.ReasoningContent != nil {
		return *d.ReasoningContent
	}
	return ""
}

// Text returns the content fragment, or "" when absent.
func (d ChunkDelta) Text() string {
	if d.Content == nil {
		return ""
	}
	return *d.Content
}

// ChunkToolCall represents an incremental tool call in a streaming chunk.
// Index identifies the call across chunks.
type ChunkToolCall struct {
	Index    int               `json:"index"`
	ID       string            `json:"id,omitempty"`
	Type     string            `json:"type,omitempty"`
	Function ChunkFunctionCall `json:"function"`
}

// ChunkFunctionCall holds incremental function call data.
type ChunkFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ChunkError is an error reported inside the stream.
type ChunkError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

// Usage holds token usage reported with the final chunk.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse is the error body returned with non-2xx statuses.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// ModelsResponse is the response from /models.
type ModelsResponse struct {
	Data []Model `json:"data"`
}

// Model is a provider-native model record.
type Model struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name,omitempty"`
	Description         string        `json:"description,omitempty"`
	ContextLength       int           `json:"context_length,omitempty"`
	Architecture        *Architecture `json:"architecture,omitempty"`
	TopProvider         *TopProvider  `json:"top_provider,omitempty"`
	SupportedParameters []string      `json:"supported_parameters,omitempty"`
	Pricing             Pricing       `json:"pricing,omitempty"`
}

// Architecture describes the modalities a model accepts and produces.
type Architecture struct {
	Modality         string   `json:"modality,omitempty"`
	InputModalities  []string `json:"input_modalities,omitempty"`
	OutputModalities []string `json:"output_modalities,omitempty"`
}

// TopProvider carries limits of the primary upstream serving the model.
type TopProvider struct {
	ContextLength       int `json:"context_length,omitempty"`
	MaxCompletionTokens int `json:"max_completion_tokens,omitempty"`
}

// PriceEntry is one key of the pricing object with its raw JSON value.
type PriceEntry struct {
	Key   string
	Value gjson.Result
}

// Pricing preserves the pricing object's keys in source order.
type Pricing []PriceEntry

// UnmarshalJSON records every key of a JSON object in document order.
// Non-object values yield an empty Pricing.
func (p *Pricing) UnmarshalJSON(data []byte) error {
	*p = nil
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return nil
	}
	res.ForEach(func(key, value gjson.Result) bool {
		*p = append(*p, PriceEntry{Key: key.String(), Value: value})
		return true
	})
	return nil
}

// MarshalJSON writes the entries back as an object in the same order.
func (p Pricing) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	buf := []byte{'{'}
	for i, e := range p {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		raw := e.Value.Raw
		if raw == "" {
			raw = "null"
		}
		buf = append(buf, raw...)
	}
	return append(buf, '}'), nil
}
