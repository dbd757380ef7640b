package mockbackend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rhuss/chatbridge/pkg/provider"
)

// Server is the mock upstream. The zero value is not usable; call New.
type Server struct {
	models []provider.Model
	apiKey string
	delay  time.Duration

	mu       sync.Mutex
	requests []provider.ChatRequest
	keys     []string
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey makes the server reject requests that do not present key as
// a bearer token.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithModels replaces the served model records.
func WithModels(models []provider.Model) Option {
	return func(s *Server) { s.models = models }
}

// WithDelay sets the pause between fragments of the slow scenario.
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

// New creates a mock upstream.
func New(opts ...Option) *Server {
	s := &Server{
		models: DefaultModels(),
		delay:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler. Routes are served both at the root and
// under /api/v1 so either form of base URL works. The mock tools are
// mounted at /mcp.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, prefix := range []string{"", "/api/v1"} {
		mux.HandleFunc("GET "+prefix+"/models", s.handleModels)
		mux.HandleFunc("POST "+prefix+"/chat/completions", s.handleChatCompletions)
	}
	mux.Handle("/mcp", MCPHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Requests returns the chat requests received so far.
func (s *Server) Requests() []provider.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.ChatRequest(nil), s.requests...)
}

// Keys returns the bearer tokens presented with each chat request.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if s.apiKey != "" && key != s.apiKey {
		writeError(w, http.StatusUnauthorized, "No auth credentials found")
		return "", false
	}
	return key, true
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(provider.ModelsResponse{Data: s.models})
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	key, ok := s.authorize(w, r)
	if !ok {
		return
	}

	var req provider.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.keys = append(s.keys, key)
	s.mu.Unlock()

	if !req.Stream {
		writeError(w, http.StatusBadRequest, "only streaming requests are supported")
		return
	}

	prompt := strings.ToLower(lastUserText(req.Messages))
	if strings.Contains(prompt, "rate limit") {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded, retry later")
		return
	}

	sw, err := newStreamWriter(w, r, req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	scenario := pick(prompt, len(req.Tools) > 0)
	slog.Debug("mock chat completion", "model", req.Model, "scenario", scenario.name)
	scenario.run(sw, &req, s.delay)
}

// writeError writes an OpenRouter-style error body.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`, message, status)
}

// lastUserText returns the text of the most recent user message. Content
// arrays contribute their text parts.
func lastUserText(messages []provider.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		switch v := messages[i].Content.(type) {
		case string:
			return v
		case []any:
			var texts []string
			for _, part := range v {
				if m, ok := part.(map[string]any); ok && m["type"] == "text" {
					if text, ok := m["text"].(string); ok {
						texts = append(texts, text)
					}
				}
			}
			return strings.Join(texts, " ")
		}
		return ""
	}
	return ""
}
