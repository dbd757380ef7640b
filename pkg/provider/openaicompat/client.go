package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// Client performs HTTP requests against an OpenAI-compatible Chat Completions
// backend. The API key is supplied per call so that a key change takes
// effect without rebuilding the client.
type Client struct {
	httpClient *http.Client
	cfg        provider.Config
}

// Ensure Client implements provider.Transport at compile time.
var _ provider.Transport = (*Client)(nil)

// NewClient creates a new Client for an OpenAI-compatible backend.
func NewClient(cfg provider.Config) *Client {
	cfg = cfg.Normalize()
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg: cfg,
	}
}

// Name returns the transport identifier.
func (c *Client) Name() string {
	return "openaicompat"
}

// StreamChat performs a streaming chat completion. The channel is closed
// when the stream completes, errors, or the context is cancelled.
//
// The HTTP client timeout is not applied for streaming requests because a
// stream can legitimately last longer than any fixed timeout. Lifecycle
// control relies on context cancellation instead.
func (c *Client) StreamChat(ctx context.Context, apiKey string, req *provider.ChatRequest) (<-chan provider.ChunkEvent, error) {
	reqCopy := *req
	reqCopy.Stream = true

	body, err := json.Marshal(&reqCopy)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.setCommonHeaders(httpReq, apiKey)

	debug.Log("providers", "chat request", "method", "POST", "url", url, "model", reqCopy.Model, "messages", len(reqCopy.Messages), "tools", len(reqCopy.Tools))
	if debug.TraceIsEnabled("providers") {
		debug.Raw("providers", "POST "+url+"\n"+string(body))
	}

	// Use a client without timeout for streaming. The context controls
	// the request lifetime instead.
	streamClient := &http.Client{
		Transport: c.httpClient.Transport,
	}

	start := time.Now()
	httpResp, err := streamClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, api.NewCancelledError("request cancelled before the stream opened")
		}
		return nil, MapNetworkError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, MapHTTPError(httpResp)
	}

	debug.Log("providers", "stream opened", "status", httpResp.StatusCode, "latency", time.Since(start))

	ch := make(chan provider.ChunkEvent, 16)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		ParseSSEStream(ctx, httpResp.Body, ch)
	}()

	return ch, nil
}

// ListModels returns the model records from the /models endpoint.
func (c *Client) ListModels(ctx context.Context, apiKey string) ([]provider.Model, error) {
	url := c.cfg.BaseURL + "/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	c.setCommonHeaders(httpReq, apiKey)

	debug.Log("providers", "list models", "url", url)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, api.NewCancelledError("model listing cancelled")
		}
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var modelsResp provider.ModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, api.NewProtocolError(fmt.Sprintf("failed to parse models response: %s", err.Error()))
	}

	return modelsResp.Data, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) setCommonHeaders(r *http.Request, apiKey string) {
	if apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if c.cfg.Referer != "" {
		r.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		r.Header.Set("X-Title", c.cfg.Title)
	}
}
