package transport

import (
	"context"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/stream"
)

// Responder streams the response to a chat request into sink. It returns
// nil once the response completed; any error ends the response.
type Responder interface {
	ProvideResponse(ctx context.Context, req *api.ChatRequest, sink stream.Sink) error
}

// ResponderFunc is an adapter that allows using an ordinary function as a
// Responder.
type ResponderFunc func(ctx context.Context, req *api.ChatRequest, sink stream.Sink) error

// ProvideResponse calls f(ctx, req, sink).
func (f ResponderFunc) ProvideResponse(ctx context.Context, req *api.ChatRequest, sink stream.Sink) error {
	return f(ctx, req, sink)
}

// ModelCatalog exposes the model listing.
type ModelCatalog interface {
	ListModels(ctx context.Context) ([]api.ModelDescriptor, error)
	Model(ctx context.Context, id string) (api.ModelDescriptor, error)
	InvalidateModels()
}

// KeyManager changes the stored provider API key.
type KeyManager interface {
	SetAPIKey(ctx context.Context, value string) error
	DeleteAPIKey(ctx context.Context) error
}

// ModelList is the JSON body of the model listing endpoint.
type ModelList struct {
	Object string                `json:"object"`
	Data   []api.ModelDescriptor `json:"data"`
}

// Backend is everything the HTTP surface serves. chat.Service satisfies it.
type Backend interface {
	Responder
	ModelCatalog
	KeyManager
}
