package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/stream"
)

// Logging returns middleware that emits one structured log entry per chat
// request with the request ID, model, message and tool counts, number of
// parts streamed, and duration. Cancellations are logged at debug level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Responder) Responder {
		return ResponderFunc(func(ctx context.Context, req *api.ChatRequest, sink stream.Sink) error {
			start := time.Now()
			counted := &countingSink{next: sink}

			err := next.ProvideResponse(ctx, req, counted)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("model", req.Model),
				slog.Int("messages", len(req.Messages)),
				slog.Int("tools", len(req.Tools)),
				slog.Int("parts", counted.n),
				slog.Duration("duration", time.Since(start)),
			}

			switch {
			case err == nil:
				logger.LogAttrs(ctx, slog.LevelInfo, "chat completed", attrs...)
			case AsAPIError(err).Type == api.ErrorTypeCancelled:
				logger.LogAttrs(ctx, slog.LevelDebug, "chat cancelled", attrs...)
			default:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "chat failed", attrs...)
			}
			return err
		})
	}
}

type countingSink struct {
	next stream.Sink
	n    int
}

func (c *countingSink) Emit(part api.ResponsePart) error {
	c.n++
	return c.next.Emit(part)
}
