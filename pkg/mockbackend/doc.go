// Package mockbackend is a deterministic OpenRouter-style upstream for
// tests and local development. It serves /models and a streaming
// /chat/completions whose output is chosen by phrases in the last user
// message:
//
//	"think"         reasoning fragments followed by answer text
//	"weather"       a tool call streamed in fragments (needs tools)
//	"broken args"   a tool call whose arguments never become valid JSON
//	"fail"          some text, then an in-band error chunk
//	"say nothing"   a stream without content
//	"rate limit"    HTTP 429 before streaming
//	"slow"          many small fragments with a delay between them
//
// Anything else streams a short greeting. An MCP server with matching
// get_weather and echo tools is mounted at /mcp.
package mockbackend
