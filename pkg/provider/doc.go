// Package provider defines the upstream side of the bridge: the
// OpenAI-compatible Chat Completions wire types and the Transport interface
// that carries them. Two transports implement it: openaicompat (plain HTTP
// with a hand-written SSE reader) and openaisdk (the openai-go SDK). Both
// deliver the same StreamChunk values, so the stream reassembler never sees
// which one is in use.
package provider
