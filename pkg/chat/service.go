package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/chatbridge/pkg/adapter"
	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/models"
	"github.com/rhuss/chatbridge/pkg/observability"
	"github.com/rhuss/chatbridge/pkg/provider"
	"github.com/rhuss/chatbridge/pkg/secrets"
	"github.com/rhuss/chatbridge/pkg/stream"
)

// Settings are the user preferences consulted on every call.
type Settings struct {
	// SystemPrompt replaces every system message when non-blank.
	SystemPrompt string

	// AllowedModels restricts the model listing to these host or native
	// ids. Empty keeps every model.
	AllowedModels []string

	// DefaultModel is used when a request names no model.
	DefaultModel string
}

// SettingsProvider returns the current settings. It is called once per
// operation so changes apply to the next request.
type SettingsProvider func() Settings

// StaticSettings returns a provider that always yields s.
func StaticSettings(s Settings) SettingsProvider {
	return func() Settings { return s }
}

// Options configure a Service.
type Options struct {
	// ModelPrefix namespaces host model ids. Defaults to adapter.DefaultModelPrefix.
	ModelPrefix string

	// Reasoning is attached to every chat request when set.
	Reasoning *provider.ReasoningDirective

	// IncludeUsage requests token usage on the final chunk.
	IncludeUsage bool
}

// Service is the request handler between a host and the provider.
// It is safe for concurrent use; every response gets its own Reassembler.
type Service struct {
	transport provider.Transport
	keys      *secrets.Resolver
	settings  SettingsProvider
	adapter   adapter.Adapter
	cache     *models.Cache
	opts      Options
}

// New creates a Service. The transport and resolver must not be nil.
func New(t provider.Transport, keys *secrets.Resolver, settings SettingsProvider, opts Options) (*Service, error) {
	if t == nil {
		return nil, errors.New("chat: transport must not be nil")
	}
	if keys == nil {
		return nil, errors.New("chat: key resolver must not be nil")
	}
	if settings == nil {
		settings = StaticSettings(Settings{})
	}
	prefix := opts.ModelPrefix
	if prefix == "" {
		prefix = adapter.DefaultModelPrefix
	}
	return &Service{
		transport: t,
		keys:      keys,
		settings:  settings,
		adapter:   adapter.New(prefix),
		cache:     models.NewCache(),
		opts:      opts,
	}, nil
}

// ListModels returns the host descriptors of the provider's models,
// filtered by the allow-list. The provider is asked at most once until the
// cache is invalidated.
func (s *Service) ListModels(ctx context.Context) ([]api.ModelDescriptor, error) {
	key, err := s.keys.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	native, hit, err := s.cache.Get(ctx, func(ctx context.Context) ([]provider.Model, error) {
		return s.transport.ListModels(ctx, key)
	})
	switch {
	case err != nil:
		observability.ModelCacheTotal.WithLabelValues("error").Inc()
		return nil, err
	case hit:
		observability.ModelCacheTotal.WithLabelValues("hit").Inc()
	default:
		observability.ModelCacheTotal.WithLabelValues("miss").Inc()
	}

	descs := s.adapter.ToHostModelDescriptors(native)
	return s.adapter.FilterModels(descs, s.settings().AllowedModels), nil
}

// Model returns the descriptor for one host model id.
func (s *Service) Model(ctx context.Context, id string) (api.ModelDescriptor, error) {
	descs, err := s.ListModels(ctx)
	if err != nil {
		return api.ModelDescriptor{}, err
	}
	for _, d := range descs {
		if d.ID == id {
			return d, nil
		}
	}
	return api.ModelDescriptor{}, api.NewNotFoundError(fmt.Sprintf("model %q not found", id))
}

// InvalidateModels drops the cached listing.
func (s *Service) InvalidateModels() {
	s.cache.Invalidate()
	debug.Log("models", "model cache invalidated")
}

// SetAPIKey stores a new provider API key and invalidates the model cache.
func (s *Service) SetAPIKey(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return api.NewInvalidRequestError("value", "API key must not be empty")
	}
	if s.keys.Store == nil {
		return api.NewServerError("no secret store configured")
	}
	if err := s.keys.Store.Store(ctx, secrets.APIKeyName, value); err != nil {
		return fmt.Errorf("storing API key: %w", err)
	}
	s.InvalidateModels()
	slog.Info("API key updated")
	return nil
}

// DeleteAPIKey removes the stored provider API key and invalidates the
// model cache. A statically configured key is unaffected.
func (s *Service) DeleteAPIKey(ctx context.Context) error {
	if s.keys.Store == nil {
		return api.NewServerError("no secret store configured")
	}
	if err := s.keys.Store.Delete(ctx, secrets.APIKeyName); err != nil {
		return fmt.Errorf("deleting API key: %w", err)
	}
	s.InvalidateModels()
	slog.Info("API key deleted")
	return nil
}

// ProvideResponse streams the response to req into sink. Parts are
// delivered in order as they are produced. It returns nil once the stream
// completed and its terminal parts were emitted; otherwise the error is
// an *api.APIError or the sink's own error.
func (s *Service) ProvideResponse(ctx context.Context, req *api.ChatRequest, sink stream.Sink) error {
	if req == nil {
		return api.NewInvalidRequestError("", "request is required")
	}
	settings := s.settings()
	if strings.TrimSpace(req.Model) == "" && settings.DefaultModel != "" {
		r := *req
		r.Model = settings.DefaultModel
		req = &r
	}

	key, err := s.keys.APIKey(ctx)
	if err != nil {
		return err
	}

	preq, err := s.adapter.BuildRequest(req, adapter.RequestOptions{
		SystemPrompt: settings.SystemPrompt,
		Reasoning:    s.opts.Reasoning,
		IncludeUsage: s.opts.IncludeUsage,
	})
	if err != nil {
		return err
	}

	provName := s.transport.Name()
	debug.Log("streaming", "opening stream",
		"provider", provName, "model", preq.Model, "messages", len(preq.Messages), "tools", len(preq.Tools))

	// Stopping early (sink failure, error chunk) must also stop the
	// transport goroutine.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	events, err := s.transport.StreamChat(ctx, key, preq)
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(provName, preq.Model, "rejected").Inc()
		observability.ProviderLatency.WithLabelValues(provName, preq.Model).Observe(time.Since(start).Seconds())
		slog.Warn("provider rejected chat request", "provider", provName, "model", preq.Model, "error", err)
		return err
	}

	r := stream.New()
	runErr := stream.Run(ctx, r, events, meteredSink{sink})
	cancel()

	stats := r.Stats()
	duration := time.Since(start)
	observability.ProviderRequestsTotal.WithLabelValues(provName, preq.Model, string(r.State())).Inc()
	observability.ProviderLatency.WithLabelValues(provName, preq.Model).Observe(duration.Seconds())
	observability.ToolCallFallbacksTotal.Add(float64(stats.Fallbacks))
	if u := stats.Usage; u != nil {
		observability.ProviderTokensTotal.WithLabelValues(provName, preq.Model, "input").Add(float64(u.PromptTokens))
		observability.ProviderTokensTotal.WithLabelValues(provName, preq.Model, "output").Add(float64(u.CompletionTokens))
	}

	attrs := []any{
		"provider", provName,
		"model", preq.Model,
		"state", r.State(),
		"duration", duration,
		"chunks", stats.Chunks,
		"text_parts", stats.TextParts,
		"tool_calls", stats.ToolCallParts,
		"fallbacks", stats.Fallbacks,
	}
	switch r.State() {
	case api.StreamFailed:
		slog.Warn("response stream failed", append(attrs, "error", runErr)...)
	case api.StreamCancelled:
		debug.Log("streaming", "response stream cancelled", attrs...)
	default:
		debug.Log("streaming", "response stream completed", attrs...)
	}

	return runErr
}

// Close releases the transport.
func (s *Service) Close() error {
	return s.transport.Close()
}

// meteredSink counts parts by kind before forwarding them.
type meteredSink struct {
	next stream.Sink
}

func (m meteredSink) Emit(part api.ResponsePart) error {
	observability.StreamPartsTotal.WithLabelValues(part.Kind()).Inc()
	return m.next.Emit(part)
}
