// Package mcp connects chatbridge to MCP (Model Context Protocol) servers.
//
// A Client wraps one server session. It discovers the server's tools as
// api.ToolDefinition values that can be offered to the model, and executes
// the tool calls the model returns. A Toolbox routes calls across several
// servers by tool name.
//
// Servers are reached over streamable HTTP (the default) or SSE, with
// optional static headers for authentication.
package mcp
