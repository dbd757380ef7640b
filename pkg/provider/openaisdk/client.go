package openaisdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// streamErrorPrefix is how the SDK reports an error object found inside
// the event stream.
const streamErrorPrefix = "received error while streaming: "

// Client streams chat completions through the openai-go SDK.
type Client struct {
	client openai.Client
	cfg    provider.Config
}

// Ensure Client implements provider.Transport at compile time.
var _ provider.Transport = (*Client)(nil)

// NewClient creates an SDK-backed transport. The SDK's automatic retries
// are disabled; a failed call fails the request.
func NewClient(cfg provider.Config) *Client {
	cfg = cfg.Normalize()

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL + "/"),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{}),
	}
	if cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.Title != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.Title))
	}

	return &Client{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// Name returns the transport identifier.
func (c *Client) Name() string {
	return "openai-sdk"
}

// StreamChat opens a streaming chat completion. Errors that prevent the
// stream from opening are returned directly; later failures arrive on the
// channel.
func (c *Client) StreamChat(ctx context.Context, apiKey string, req *provider.ChatRequest) (<-chan provider.ChunkEvent, error) {
	opts, err := bodyOptions(req)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to encode request: %s", err.Error()))
	}
	opts = append(opts, option.WithAPIKey(apiKey))

	debug.Log("providers", "sdk chat request", "model", req.Model, "messages", len(req.Messages), "tools", len(req.Tools))

	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: req.Model,
	}, opts...)
	if err := stream.Err(); err != nil {
		stream.Close()
		if ctx.Err() != nil {
			return nil, api.NewCancelledError("request cancelled before the stream opened")
		}
		return nil, mapError(err)
	}

	ch := make(chan provider.ChunkEvent, 16)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			raw := stream.Current().RawJSON()
			debug.Trace("streaming", "sdk chunk", "data", debug.Truncate(raw, 500))

			var chunk provider.StreamChunk
			if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
				send(ctx, ch, provider.ChunkEvent{Err: api.NewProtocolError("malformed stream chunk: " + err.Error())})
				return
			}
			if !send(ctx, ch, provider.ChunkEvent{Chunk: &chunk}) {
				return
			}
		}

		err := stream.Err()
		if err == nil || ctx.Err() != nil {
			return
		}
		if chunkErr, ok := inStreamError(err); ok {
			send(ctx, ch, provider.ChunkEvent{Chunk: &provider.StreamChunk{Error: chunkErr}})
			return
		}
		send(ctx, ch, provider.ChunkEvent{Err: mapError(err)})
	}()

	return ch, nil
}

// ListModels fetches /models. The SDK's typed model list drops the
// OpenRouter metadata, so the response is decoded into provider.Model.
func (c *Client) ListModels(ctx context.Context, apiKey string) ([]provider.Model, error) {
	var out provider.ModelsResponse
	if err := c.client.Get(ctx, "models", nil, &out, option.WithAPIKey(apiKey)); err != nil {
		if ctx.Err() != nil {
			return nil, api.NewCancelledError("model listing cancelled")
		}
		return nil, mapError(err)
	}
	return out.Data, nil
}

// Close is a no-op; the SDK holds no resources beyond its HTTP client.
func (c *Client) Close() error {
	return nil
}

// bodyOptions sets every request field except model and stream, which the
// SDK writes itself.
func bodyOptions(req *provider.ChatRequest) ([]option.RequestOption, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	opts := make([]option.RequestOption, 0, len(fields))
	for key, value := range fields {
		if key == "model" || key == "stream" {
			continue
		}
		opts = append(opts, option.WithJSONSet(key, value))
	}
	return opts, nil
}

// mapError converts SDK errors to APIErrors with the upstream status.
func mapError(err error) *api.APIError {
	var sdkErr *openai.Error
	if errors.As(err, &sdkErr) {
		msg := sdkErr.Message
		if msg == "" {
			msg = http.StatusText(sdkErr.StatusCode)
		}
		apiErr := api.NewTransportError(sdkErr.StatusCode, msg)
		switch sdkErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			apiErr.Code = "unauthorized"
		case http.StatusTooManyRequests:
			apiErr.Code = "rate_limited"
		}
		return apiErr
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return api.NewProtocolError("malformed upstream response: " + err.Error())
	}
	return api.NewTransportError(0, fmt.Sprintf("upstream connection error: %s", err.Error()))
}

// inStreamError recognizes an error object the SDK found inside the event
// stream and extracts its message.
func inStreamError(err error) (*provider.ChunkError, bool) {
	raw, ok := strings.CutPrefix(err.Error(), streamErrorPrefix)
	if !ok {
		return nil, false
	}
	res := gjson.Parse(raw)
	chunkErr := &provider.ChunkError{Message: res.Get("message").String()}
	if code := res.Get("code"); code.Exists() {
		chunkErr.Code = code.Value()
	}
	if chunkErr.Message == "" && !res.IsObject() {
		chunkErr.Message = strings.TrimSpace(raw)
	}
	return chunkErr, true
}

func send(ctx context.Context, ch chan<- provider.ChunkEvent, ev provider.ChunkEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
