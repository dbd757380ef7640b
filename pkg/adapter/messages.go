package adapter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// ToProviderMessages translates host messages in order. One host message
// may expand to several provider messages, one per emitted part.
//
// Text in a tool-bearing message (role tool, or containing a tool result)
// is dropped. Tool results always become role "tool". Non-image binary
// parts and unknown part kinds are skipped. The function never fails.
func (a Adapter) ToProviderMessages(msgs []api.ChatMessage) []provider.ChatMessage {
	var out []provider.ChatMessage
	for _, msg := range msgs {
		role := providerRole(msg.Role)
		toolBearing := isToolBearing(msg)

		for _, part := range msg.Content {
			switch p := part.(type) {
			case api.TextPart:
				if toolBearing {
					debug.Log("adapter", "dropping text in tool-bearing message", "role", msg.Role)
					continue
				}
				out = append(out, provider.ChatMessage{
					Role:    role,
					Content: p.Value,
					Name:    msg.Name,
				})

			case api.ToolCallPart:
				out = append(out, provider.ChatMessage{
					Role: string(api.RoleAssistant),
					ToolCalls: []provider.ChatToolCall{{
						ID:   p.CallID,
						Type: "function",
						Function: provider.ChatFunctionCall{
							Name:      p.Name,
							Arguments: stringifyArguments(p.Input),
						},
					}},
				})

			case api.ToolResultPart:
				out = append(out, provider.ChatMessage{
					Role:       string(api.RoleTool),
					Content:    stringify(p.Content),
					ToolCallID: p.CallID,
				})

			case api.ImagePart:
				if !strings.HasPrefix(p.MimeType, "image/") {
					debug.Log("adapter", "dropping non-image binary part", "mime_type", p.MimeType)
					continue
				}
				out = append(out, provider.ChatMessage{
					Role: role,
					Content: []provider.ContentPart{{
						Type:     "image_url",
						ImageURL: &provider.ImageURL{URL: dataURI(p.MimeType, p.Data)},
					}},
				})

			default:
				debug.Log("adapter", "skipping unknown content part", "type", fmt.Sprintf("%T", part))
			}
		}
	}
	return out
}

// ToProviderTools maps tool definitions 1:1. A missing schema becomes an
// empty object.
func (a Adapter) ToProviderTools(tools []api.ToolDefinition) []provider.ChatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]provider.ChatTool, 0, len(tools))
	for _, t := range tools {
		params := t.InputSchema
		if params == nil {
			params = map[string]any{}
		}
		out = append(out, provider.ChatTool{
			Type: "function",
			Function: provider.ChatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// ApplySystemPrompt removes every system message and inserts a single
// leading system message with override. A blank override returns msgs
// unchanged.
func ApplySystemPrompt(msgs []provider.ChatMessage, override string) []provider.ChatMessage {
	if strings.TrimSpace(override) == "" {
		return msgs
	}
	out := make([]provider.ChatMessage, 0, len(msgs)+1)
	out = append(out, provider.ChatMessage{Role: string(api.RoleSystem), Content: override})
	for _, m := range msgs {
		if m.Role == string(api.RoleSystem) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func providerRole(r api.Role) string {
	switch r {
	case api.RoleUser, api.RoleAssistant:
		return string(r)
	default:
		return string(api.RoleSystem)
	}
}

func isToolBearing(msg api.ChatMessage) bool {
	if msg.Role == api.RoleTool {
		return true
	}
	for _, part := range msg.Content {
		if _, ok := part.(api.ToolResultPart); ok {
			return true
		}
	}
	return false
}

func stringifyArguments(input map[string]any) string {
	if input == nil {
		return "{}"
	}
	return stringify(input)
}

func stringify(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func dataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
