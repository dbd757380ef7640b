package api

import (
	"encoding/json"
	"fmt"
)

// ResponsePart is a single host-facing event produced while a response
// streams: TextResponsePart, ToolCallResponsePart or ThinkingResponsePart.
type ResponsePart interface {
	responsePart()

	// Kind returns the event discriminator used on the wire and in metrics.
	Kind() string
}

// Response part discriminators.
const (
	PartKindText     = "text"
	PartKindToolCall = "tool_call"
	PartKindThinking = "thinking"
)

// TextResponsePart is a fragment of answer text.
type TextResponsePart struct {
	Value string
}

// ToolCallResponsePart is a fully formed tool invocation requested by the model.
type ToolCallResponsePart struct {
	CallID string
	Name   string
	Input  map[string]any

	// Index is the call's position in the upstream response. A call that
	// is emitted again keeps its index even when its id changed.
	Index int
}

// ThinkingResponsePart is a fragment of reasoning text. A part with Closed
// set and empty Text marks the end of a reasoning segment.
type ThinkingResponsePart struct {
	Text   string
	Closed bool
}

func (TextResponsePart) responsePart()     {}
func (ToolCallResponsePart) responsePart() {}
func (ThinkingResponsePart) responsePart() {}

func (TextResponsePart) Kind() string     { return PartKindText }
func (ToolCallResponsePart) Kind() string { return PartKindToolCall }
func (ThinkingResponsePart) Kind() string { return PartKindThinking }

// MarshalJSON implements json.Marshaler.
func (p TextResponsePart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{PartKindText, p.Value})
}

// MarshalJSON implements json.Marshaler. A nil input is encoded as {}.
func (p ToolCallResponsePart) MarshalJSON() ([]byte, error) {
	input := p.Input
	if input == nil {
		input = map[string]any{}
	}
	return json.Marshal(struct {
		Type   string         `json:"type"`
		CallID string         `json:"call_id"`
		Name   string         `json:"name"`
		Input  map[string]any `json:"input"`
		Index  int            `json:"index,omitempty"`
	}{PartKindToolCall, p.CallID, p.Name, input, p.Index})
}

// MarshalJSON implements json.Marshaler.
func (p ThinkingResponsePart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Text   string `json:"text"`
		Closed bool   `json:"closed,omitempty"`
	}{PartKindThinking, p.Text, p.Closed})
}

// DecodeResponsePart parses the JSON produced by a ResponsePart's MarshalJSON.
func DecodeResponsePart(data []byte) (ResponsePart, error) {
	var env struct {
		Type   string         `json:"type"`
		Value  string         `json:"value"`
		CallID string         `json:"call_id"`
		Name   string         `json:"name"`
		Input  map[string]any `json:"input"`
		Index  int            `json:"index"`
		Text   string         `json:"text"`
		Closed bool           `json:"closed"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case PartKindText:
		return TextResponsePart{Value: env.Value}, nil
	case PartKindToolCall:
		return ToolCallResponsePart{CallID: env.CallID, Name: env.Name, Input: env.Input, Index: env.Index}, nil
	case PartKindThinking:
		return ThinkingResponsePart{Text: env.Text, Closed: env.Closed}, nil
	default:
		return nil, fmt.Errorf("unknown response part type %q", env.Type)
	}
}
