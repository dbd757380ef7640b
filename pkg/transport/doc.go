// Package transport defines the handler contracts and middleware chain of
// the chatbridge HTTP/SSE surface.
//
// The transport layer bridges IDE clients and the chat service. It decodes
// host requests into the types of pkg/api, dispatches them, and streams
// response parts back over SSE.
//
// # Handler Interfaces
//
//   - Responder produces the streamed response to one chat request.
//   - ModelCatalog lists models and drops the cached listing.
//   - KeyManager stores and deletes the provider API key.
//   - Backend combines the three for servers that expose all of them.
//
// # Middleware
//
// The middleware chain wraps a Responder with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID), and structured
// logging via log/slog. HTTP-level concerns (auth, metrics) live in the
// http subpackage.
package transport
