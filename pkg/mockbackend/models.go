package mockbackend

import (
	"encoding/json"

	"github.com/rhuss/chatbridge/pkg/provider"
)

// modelsJSON mirrors the shape of OpenRouter's model listing.
const modelsJSON = `[
  {
    "id": "anthropic/claude-sonnet-4",
    "name": "Anthropic: Claude Sonnet 4",
    "description": "Balanced model for coding and agents.",
    "context_length": 200000,
    "architecture": {"modality": "text+image->text", "input_modalities": ["text", "image"], "output_modalities": ["text"]},
    "top_provider": {"context_length": 200000, "max_completion_tokens": 64000},
    "supported_parameters": ["tools", "tool_choice", "reasoning", "max_tokens", "temperature"],
    "pricing": {"prompt": "0.000003", "completion": "0.000015", "request": "0", "image": "0.0048"}
  },
  {
    "id": "openai/gpt-4o-mini",
    "name": "OpenAI: GPT-4o-mini",
    "description": "Small, fast and cheap.",
    "context_length": 128000,
    "architecture": {"modality": "text+image->text", "input_modalities": ["text", "image", "file"], "output_modalities": ["text"]},
    "top_provider": {"context_length": 128000, "max_completion_tokens": 16384},
    "supported_parameters": ["tools", "tool_choice", "max_tokens", "temperature"],
    "pricing": {"prompt": "0.00000015", "completion": "0.0000006"}
  },
  {
    "id": "deepseek/deepseek-r1",
    "name": "DeepSeek: R1",
    "context_length": 64000,
    "architecture": {"modality": "text->text", "input_modalities": ["text"], "output_modalities": ["text"]},
    "top_provider": {"context_length": 64000},
    "supported_parameters": ["reasoning", "max_tokens"],
    "pricing": {"prompt": "0", "completion": "0"}
  }
]`

// DefaultModels returns the model records served by default.
func DefaultModels() []provider.Model {
	var models []provider.Model
	if err := json.Unmarshal([]byte(modelsJSON), &models); err != nil {
		panic("mockbackend: invalid model fixture: " + err.Error())
	}
	return models
}
