package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/auth"
	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/observability"
	"github.com/rhuss/chatbridge/pkg/transport"
)

// maxSecretBodySize caps PUT /v1/secrets/api-key bodies.
const maxSecretBodySize = 64 << 10

// Adapter serves the chatbridge API over HTTP.
// It routes requests to the backend and streams chat responses as SSE.
type Adapter struct {
	responder transport.Responder
	models    transport.ModelCatalog
	keys      transport.KeyManager
	inflight  *transport.InFlightRegistry
	mux       *http.ServeMux
	config    Config
	authMW    func(http.Handler) http.Handler
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// Auth guards every route except /healthz and the metrics endpoint.
	// Nil disables authentication.
	Auth *auth.Chain

	// RateLimiter is consulted after successful authentication. Optional.
	RateLimiter auth.RateLimiter

	// HealthCheck backs GET /healthz. Nil reports healthy.
	HealthCheck func(context.Context) error

	// MetricsPath mounts the Prometheus handler, e.g. "/metrics". Empty
	// disables the endpoint.
	MetricsPath string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an HTTP adapter for backend. Middleware is applied to
// the chat responder in the given order.
func NewAdapter(backend transport.Backend, cfg Config, middlewares ...transport.Middleware) *Adapter {
	var responder transport.Responder = backend
	if len(middlewares) > 0 {
		responder = transport.Chain(middlewares...)(responder)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		responder: responder,
		models:    backend,
		keys:      backend,
		inflight:  transport.NewInFlightRegistry(),
		mux:       http.NewServeMux(),
		config:    cfg,
	}
	if cfg.Auth != nil {
		a.authMW = auth.Middleware(cfg.Auth, cfg.RateLimiter, auth.DefaultBypassEndpoints)
	}

	a.handle("GET /v1/models", auth.ScopeModels, a.handleListModels)
	a.handle("GET /v1/models/{id...}", auth.ScopeModels, a.handleGetModel)
	a.handle("POST /v1/models/refresh", auth.ScopeModels, a.handleRefreshModels)
	a.handle("POST /v1/chat", auth.ScopeChat, a.handleChat)
	a.handle("DELETE /v1/chat/{id}", auth.ScopeChat, a.handleCancelChat)
	a.handle("PUT /v1/secrets/api-key", auth.ScopeKeys, a.handleSetAPIKey)
	a.handle("DELETE /v1/secrets/api-key", auth.ScopeKeys, a.handleDeleteAPIKey)
	a.handle("GET /healthz", "", a.handleHealth)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	return a
}

// handle registers a route guarded by scope. Authentication wraps each
// route rather than the mux so that the metrics middleware still sees the
// matched pattern.
func (a *Adapter) handle(pattern, scope string, h http.HandlerFunc) {
	var handler http.Handler = h
	if scope != "" {
		handler = auth.RequireScope(scope, handler)
	}
	if a.authMW != nil {
		handler = a.authMW(handler)
	}
	a.mux.Handle(pattern, handler)
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// request ID propagation and request metrics.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(observability.MetricsMiddleware(a.mux))
}

// InFlight returns the number of chat streams currently running.
func (a *Adapter) InFlight() int {
	return a.inflight.Len()
}

// httpRequestIDMiddleware assigns every request an ID, taken from the
// X-Request-ID header when the client sent one. The ID is stored in the
// context and echoed in the response headers before the first write.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = api.NewRequestID()
		}
		r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// handleListModels handles GET /v1/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.models.ListModels(r.Context())
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	if models == nil {
		models = []api.ModelDescriptor{}
	}
	writeJSON(w, http.StatusOK, transport.ModelList{Object: "list", Data: models})
}

// handleGetModel handles GET /v1/models/{id...}. Model IDs contain slashes
// (vendor/model), hence the wildcard.
func (a *Adapter) handleGetModel(w http.ResponseWriter, r *http.Request) {
	model, err := a.models.Model(r.Context(), r.PathValue("id"))
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	writeJSON(w, http.StatusOK, model)
}

// handleRefreshModels handles POST /v1/models/refresh.
func (a *Adapter) handleRefreshModels(w http.ResponseWriter, r *http.Request) {
	a.models.InvalidateModels()
	w.WriteHeader(http.StatusNoContent)
}

// handleChat handles POST /v1/chat.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	if !a.checkContentType(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeDecodeError(w, err)
		return
	}

	// The request context ends when the client disconnects, which cancels
	// the upstream stream as well.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := transport.RequestIDFromContext(ctx)
	if a.inflight.Register(id, cancel) {
		defer a.inflight.Remove(id)
	} else {
		debug.Log("transport", "duplicate request id, stream not cancellable", "request_id", id)
	}

	sink := newSSESink(w)
	if err := a.responder.ProvideResponse(ctx, &req, sink); err != nil {
		a.writeHandlerError(w, sink, err)
		return
	}
	if err := sink.Done(api.StreamCompleted); err != nil {
		debug.Log("transport", "writing done event failed", "request_id", id, "error", err)
	}
}

// handleCancelChat handles DELETE /v1/chat/{id}, aborting a running stream.
func (a *Adapter) handleCancelChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.inflight.Cancel(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("no running chat with id "+id))
		return
	}
	slog.Info("chat cancelled by client", "request_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type setKeyRequest struct {
	Value string `json:"value"`
}

// handleSetAPIKey handles PUT /v1/secrets/api-key.
func (a *Adapter) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	if !a.checkContentType(w, r) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSecretBodySize)

	var body setKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	if err := a.keys.SetAPIKey(r.Context(), body.Value); err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteAPIKey handles DELETE /v1/secrets/api-key.
func (a *Adapter) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := a.keys.DeleteAPIKey(r.Context()); err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /healthz.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.config.HealthCheck != nil {
		if err := a.config.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// checkContentType rejects bodies that are not JSON. A missing header is
// accepted.
func (a *Adapter) checkContentType(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "application/json" {
		return true
	}
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
		http.StatusUnsupportedMediaType,
	)
	return false
}

func (a *Adapter) writeDecodeError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", maxBytesErr.Limit)),
			http.StatusRequestEntityTooLarge,
		)
		return
	}
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
		http.StatusBadRequest,
	)
}

// writeHandlerError writes an error from the chat handler. If streaming
// has already started, it sends an error event. Otherwise it writes a
// standard JSON error response.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, sink *sseSink, err error) {
	apiErr := transport.AsAPIError(err)

	if sink.hasStartedStreaming() {
		if ferr := sink.Fail(apiErr); ferr != nil {
			debug.Log("transport", "writing error event failed", "error", ferr)
		}
		return
	}

	transport.WriteAPIError(w, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
