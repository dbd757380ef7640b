// Package api defines the host-facing types of the chatbridge adapter.
//
// The host is an IDE chat-provider plugin contract. This package models the
// host's side of the bridge: chat messages with their closed set of content
// parts, tool definitions, model descriptors, the streamed response parts
// the host consumes, the per-request stream state machine, and the error
// taxonomy every layer reports with.
//
// Core types:
//   - [ChatMessage] and [ContentPart] ([TextPart], [ToolCallPart], [ToolResultPart], [ImagePart])
//   - [ResponsePart] ([TextResponsePart], [ToolCallResponsePart], [ThinkingResponsePart])
//   - [ModelDescriptor] and [ToolDefinition]
//   - [APIError]: structured error with type, message and optional upstream status
//
// The package performs no I/O.
package api
