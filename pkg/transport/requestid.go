package transport

import (
	"context"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/stream"
)

// RequestID returns middleware that makes sure every request carries an
// ID. An ID already in the context (set by the HTTP adapter from
// X-Request-ID) is kept; otherwise a new one is generated.
func RequestID() Middleware {
	return func(next Responder) Responder {
		return ResponderFunc(func(ctx context.Context, req *api.ChatRequest, sink stream.Sink) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, api.NewRequestID())
			}
			return next.ProvideResponse(ctx, req, sink)
		})
	}
}
