package api

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ChatMessage is a single host chat message. Content parts of different
// kinds may coexist within one message.
type ChatMessage struct {
	Role    Role          `json:"role"`
	Name    string        `json:"name,omitempty"`
	Content []ContentPart `json:"content"`
}

// ContentPart is one of TextPart, ToolCallPart, ToolResultPart or ImagePart.
// The set is closed: the unexported marker method keeps other packages from
// adding kinds, so every type switch over ContentPart is exhaustive by review.
type ContentPart interface {
	contentPart()
}

// TextPart is plain message text.
type TextPart struct {
	Value string `json:"value"`
}

// ToolCallPart records a tool invocation previously requested by the model.
type ToolCallPart struct {
	CallID string         `json:"call_id"`
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
}

// ToolResultPart carries the outcome of a tool invocation back to the model.
// Content is any JSON-serializable value.
type ToolResultPart struct {
	CallID  string `json:"call_id"`
	Content any    `json:"content"`
}

// ImagePart carries binary data with its MIME type. Data is raw bytes and
// is base64 encoded when serialized as JSON.
type ImagePart struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

func (TextPart) contentPart()       {}
func (ToolCallPart) contentPart()   {}
func (ToolResultPart) contentPart() {}
func (ImagePart) contentPart()      {}

// Content part type discriminators used in the JSON encoding.
const (
	PartTypeText       = "text"
	PartTypeToolCall   = "tool_call"
	PartTypeToolResult = "tool_result"
	PartTypeImage      = "image"
)

// partEnvelope is the JSON shape shared by all content parts.
type partEnvelope struct {
	Type     string         `json:"type"`
	Value    string         `json:"value,omitempty"`
	CallID   string         `json:"call_id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
	Content  any            `json:"content,omitempty"`
	MimeType string         `json:"mime_type,omitempty"`
	Data     []byte         `json:"data,omitempty"`
}

// MarshalJSON encodes the message with a "type" field on every content part.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	parts := make([]partEnvelope, 0, len(m.Content))
	for _, p := range m.Content {
		switch v := p.(type) {
		case TextPart:
			parts = append(parts, partEnvelope{Type: PartTypeText, Value: v.Value})
		case ToolCallPart:
			parts = append(parts, partEnvelope{Type: PartTypeToolCall, CallID: v.CallID, Name: v.Name, Input: v.Input})
		case ToolResultPart:
			parts = append(parts, partEnvelope{Type: PartTypeToolResult, CallID: v.CallID, Content: v.Content})
		case ImagePart:
			parts = append(parts, partEnvelope{Type: PartTypeImage, MimeType: v.MimeType, Data: v.Data})
		default:
			return nil, fmt.Errorf("unsupported content part %T", p)
		}
	}
	return json.Marshal(struct {
		Role    Role           `json:"role"`
		Name    string         `json:"name,omitempty"`
		Content []partEnvelope `json:"content"`
	}{m.Role, m.Name, parts})
}

// UnmarshalJSON decodes a message whose content is either a plain string
// (shorthand for a single text part) or a list of typed parts. Parts with an
// unknown type are rejected.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Name    string          `json:"name"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Name = raw.Name
	m.Content = nil

	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Content = []ContentPart{TextPart{Value: text}}
		return nil
	}

	var envs []partEnvelope
	if err := json.Unmarshal(raw.Content, &envs); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	for i, e := range envs {
		switch e.Type {
		case PartTypeText:
			m.Content = append(m.Content, TextPart{Value: e.Value})
		case PartTypeToolCall:
			m.Content = append(m.Content, ToolCallPart{CallID: e.CallID, Name: e.Name, Input: e.Input})
		case PartTypeToolResult:
			m.Content = append(m.Content, ToolResultPart{CallID: e.CallID, Content: e.Content})
		case PartTypeImage:
			m.Content = append(m.Content, ImagePart{MimeType: e.MimeType, Data: e.Data})
		default:
			return fmt.Errorf("content[%d]: unknown part type %q", i, e.Type)
		}
	}
	return nil
}

// ToolDefinition describes a tool the model may call. InputSchema is a
// JSON-schema shaped object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolMode controls whether the model must call a tool.
type ToolMode string

const (
	ToolModeAuto     ToolMode = "auto"
	ToolModeRequired ToolMode = "required"
)

// ChatRequest is the host's request for one chat turn.
type ChatRequest struct {
	Model    string           `json:"model"`
	Messages []ChatMessage    `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	ToolMode ToolMode         `json:"tool_mode,omitempty"`

	// MaxTokens optionally caps the response length.
	MaxTokens *int `json:"max_tokens,omitempty"`

	// Temperature is forwarded verbatim when set.
	Temperature *float64 `json:"temperature,omitempty"`
}

// ModelCapabilities lists what a model accepts.
type ModelCapabilities struct {
	ImageInput  bool `json:"image_input"`
	ToolCalling bool `json:"tool_calling"`
}

// ModelDescriptor is the host-facing description of a provider model.
type ModelDescriptor struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Family          string            `json:"family"`
	Version         string            `json:"version,omitempty"`
	MaxInputTokens  int               `json:"max_input_tokens"`
	MaxOutputTokens int               `json:"max_output_tokens"`
	Capabilities    ModelCapabilities `json:"capabilities"`

	// Pricing is a flat human readable summary, empty when the provider
	// reported none.
	Pricing string `json:"pricing,omitempty"`

	// Tooltip is a short description suitable for a model picker.
	Tooltip string `json:"tooltip,omitempty"`
}
