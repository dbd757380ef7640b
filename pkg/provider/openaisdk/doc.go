// Package openaisdk implements provider.Transport on top of the official
// openai-go SDK. It is the alternative to package openaicompat for the same
// OpenAI-compatible Chat Completions contract.
//
// The SDK's typed parameters do not model OpenRouter extensions such as the
// "reasoning" directive, so the request body fields are set from
// provider.ChatRequest with option.WithJSONSet, and each streamed chunk's
// raw JSON is decoded into provider.StreamChunk.
package openaisdk
