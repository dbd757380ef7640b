package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/stream"
)

// Recovery returns middleware that turns a panic in the handler into a
// server error. The server keeps accepting requests afterwards.
func Recovery() Middleware {
	return func(next Responder) Responder {
		return ResponderFunc(func(ctx context.Context, req *api.ChatRequest, sink stream.Sink) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in chat handler",
						"request_id", RequestIDFromContext(ctx),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.ProvideResponse(ctx, req, sink)
		})
	}
}
