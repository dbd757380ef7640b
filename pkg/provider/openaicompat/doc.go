// Package openaicompat implements provider.Transport against any
// OpenAI-compatible Chat Completions endpoint over plain HTTP. It handles
// request serialization, SSE chunk decoding, model listing, and mapping of
// upstream failures to api.APIError values.
package openaicompat
