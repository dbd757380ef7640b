package stream

import (
	"context"
	"errors"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// Sink receives response parts in order as they are produced.
type Sink interface {
	Emit(part api.ResponsePart) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(part api.ResponsePart) error

// Emit calls f(part).
func (f SinkFunc) Emit(part api.ResponsePart) error {
	return f(part)
}

// Run feeds every event from events into r and writes the produced parts
// to sink. It returns nil when the channel closes normally, after the
// terminal parts were emitted.
//
// Cancellation of ctx stops the loop without emitting terminal parts and
// returns a cancelled error. Transport errors and error chunks fail the
// stream and are returned as *api.APIError. A sink error cancels the
// stream and is returned unchanged.
func Run(ctx context.Context, r *Reassembler, events <-chan provider.ChunkEvent, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return cancelled(r)

		case ev, ok := <-events:
			if ctx.Err() != nil {
				return cancelled(r)
			}
			if !ok {
				return emitAll(sink, r.Finish())
			}

			if ev.Err != nil {
				apiErr := asAPIError(ev.Err)
				r.Fail(apiErr)
				return apiErr
			}

			parts, err := r.Process(ev.Chunk)
			if emitErr := emitAll(sink, parts); emitErr != nil {
				r.Cancel()
				return emitErr
			}
			if err != nil {
				return err
			}
		}
	}
}

func emitAll(sink Sink, parts []api.ResponsePart) error {
	for _, p := range parts {
		if err := sink.Emit(p); err != nil {
			return err
		}
	}
	return nil
}

func cancelled(r *Reassembler) error {
	r.Cancel()
	return api.NewCancelledError("response stream cancelled")
}

func asAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.Canceled) {
		return api.NewCancelledError(err.Error())
	}
	return api.NewTransportError(0, err.Error())
}
