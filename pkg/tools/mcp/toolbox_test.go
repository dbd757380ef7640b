package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/observability"
)

// setupTestServer starts an MCP server with the given tools and connects a
// client to it through in-memory transports.
func setupTestServer(t *testing.T, name string, serverTools map[string]mcp.ToolHandler) *Client {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: "1.0.0"}, nil)
	for toolName, handler := range serverTools {
		server.AddTool(
			&mcp.Tool{
				Name:        toolName,
				Description: "Test tool: " + toolName,
				InputSchema: map[string]any{
					"type":       "object",
					"properties": map[string]any{"name": map[string]any{"type": "string"}},
				},
			},
			handler,
		)
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx := context.Background()
	go func() {
		_ = server.Run(ctx, serverTransport)
	}()

	client := NewClient(ServerConfig{Name: name})
	if err := client.ConnectWithTransport(ctx, clientTransport); err != nil {
		t.Fatalf("ConnectWithTransport failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func textResult(text string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil
	}
}

func TestClient_DiscoverTools(t *testing.T) {
	client := setupTestServer(t, "test-server", map[string]mcp.ToolHandler{
		"get_weather": textResult("sunny"),
		"get_time":    textResult("12:00"),
	})

	defs, err := client.DiscoverTools(context.Background())
	if err != nil {
		t.Fatalf("DiscoverTools: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(defs))
	}

	names := map[string]bool{}
	for _, def := range defs {
		names[def.Name] = true
		if def.InputSchema["type"] != "object" {
			t.Errorf("tool %q schema = %v, want an object schema", def.Name, def.InputSchema)
		}
		if !strings.HasPrefix(def.Description, "Test tool: ") {
			t.Errorf("tool %q description = %q", def.Name, def.Description)
		}
	}
	if !names["get_weather"] || !names["get_time"] {
		t.Errorf("discovered names = %v", names)
	}

	again, _ := client.DiscoverTools(context.Background())
	if len(again) != len(defs) {
		t.Error("cached tools mismatch")
	}
}

func TestClient_NotConnected(t *testing.T) {
	client := NewClient(ServerConfig{Name: "offline"})

	if _, err := client.DiscoverTools(context.Background()); err == nil {
		t.Error("expected error discovering tools without a session")
	}
	if _, _, err := client.CallTool(context.Background(), "x", nil); err == nil {
		t.Error("expected error calling a tool without a session")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close without session: %v", err)
	}
}

func TestClient_UnsupportedTransport(t *testing.T) {
	client := NewClient(ServerConfig{Name: "bad", Transport: "websocket", URL: "http://localhost:1"})

	err := client.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unsupported transport") {
		t.Errorf("err = %v, want unsupported transport", err)
	}
}

func TestToolbox_Execute(t *testing.T) {
	client := setupTestServer(t, "test-server", map[string]mcp.ToolHandler{
		"greet": func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return nil, err
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "Hello, " + args.Name + "!"}},
			}, nil
		},
	})
	box := NewToolbox(client)

	before := executions(t, "greet", "ok")

	result := box.Execute(context.Background(), api.ToolCallResponsePart{
		CallID: "call_123",
		Name:   "greet",
		Input:  map[string]any{"name": "World"},
	})
	if result.CallID != "call_123" {
		t.Errorf("call ID = %q, want call_123", result.CallID)
	}
	if result.Content != "Hello, World!" {
		t.Errorf("content = %v, want Hello, World!", result.Content)
	}

	after := executions(t, "greet", "ok")
	if after != before+1 {
		t.Errorf("tool execution counter = %v, want %v", after, before+1)
	}
}

func TestToolbox_StructuredContent(t *testing.T) {
	client := setupTestServer(t, "test-server", map[string]mcp.ToolHandler{
		"stats": func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				Content:           []mcp.Content{&mcp.TextContent{Text: `{"lines":42}`}},
				StructuredContent: map[string]any{"lines": 42},
			}, nil
		},
	})
	box := NewToolbox(client)

	result := box.Execute(context.Background(), api.ToolCallResponsePart{CallID: "call_s", Name: "stats"})
	content, ok := result.Content.(map[string]any)
	if !ok {
		t.Fatalf("content = %#v, want structured object", result.Content)
	}
	if content["lines"] != float64(42) {
		t.Errorf("lines = %v, want 42", content["lines"])
	}
}

func TestToolbox_MultiServer(t *testing.T) {
	clientA := setupTestServer(t, "server-a", map[string]mcp.ToolHandler{
		"tool_a": textResult("from server A"),
		"shared": textResult("shared from A"),
	})
	clientB := setupTestServer(t, "server-b", map[string]mcp.ToolHandler{
		"tool_b": textResult("from server B"),
		"shared": textResult("shared from B"),
	})
	box := NewToolbox(clientA, clientB)

	defs := box.Tools(context.Background())
	if len(defs) != 3 {
		t.Fatalf("expected 3 tools after de-duplication, got %d", len(defs))
	}

	cases := map[string]string{
		"tool_a": "from server A",
		"tool_b": "from server B",
		"shared": "shared from A",
	}
	for name, want := range cases {
		result := box.Execute(context.Background(), api.ToolCallResponsePart{CallID: "call_" + name, Name: name})
		if result.Content != want {
			t.Errorf("%s: content = %v, want %q", name, result.Content, want)
		}
	}
}

func TestToolbox_ToolError(t *testing.T) {
	client := setupTestServer(t, "test-server", map[string]mcp.ToolHandler{
		"failing_tool": func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "something went wrong"}},
				IsError: true,
			}, nil
		},
	})
	box := NewToolbox(client)

	result := box.Execute(context.Background(), api.ToolCallResponsePart{CallID: "call_err", Name: "failing_tool"})
	if result.Content != "error: something went wrong" {
		t.Errorf("content = %v, want error: something went wrong", result.Content)
	}
}

func TestToolbox_UnknownTool(t *testing.T) {
	client := setupTestServer(t, "test-server", map[string]mcp.ToolHandler{
		"known_tool": textResult("ok"),
	})
	box := NewToolbox(client)

	before := executions(t, "nonexistent_tool", "unknown")
	result := box.Execute(context.Background(), api.ToolCallResponsePart{CallID: "call_unknown", Name: "nonexistent_tool"})

	content, _ := result.Content.(string)
	if !strings.Contains(content, "no MCP server provides tool") {
		t.Errorf("content = %v", result.Content)
	}
	after := executions(t, "nonexistent_tool", "unknown")
	if after != before+1 {
		t.Errorf("unknown counter = %v, want %v", after, before+1)
	}
}

func TestToolbox_AllowTools(t *testing.T) {
	client := setupTestServer(t, "test-server", map[string]mcp.ToolHandler{
		"read_file":  textResult("contents"),
		"write_file": textResult("written"),
	})
	box := NewToolbox(client).AllowTools("read_file")

	defs := box.Tools(context.Background())
	if len(defs) != 1 || defs[0].Name != "read_file" {
		t.Fatalf("tools = %+v, want only read_file", defs)
	}

	before := executions(t, "write_file", "rejected")
	result := box.Execute(context.Background(), api.ToolCallResponsePart{CallID: "call_w", Name: "write_file"})
	content, _ := result.Content.(string)
	if !strings.Contains(content, "not in the allowed tools list") {
		t.Errorf("content = %v", result.Content)
	}
	if after := executions(t, "write_file", "rejected"); after != before+1 {
		t.Errorf("rejected counter = %v, want %v", after, before+1)
	}

	result = box.Execute(context.Background(), api.ToolCallResponsePart{CallID: "call_r", Name: "read_file"})
	if result.Content != "contents" {
		t.Errorf("allowed tool content = %v", result.Content)
	}
}

func TestToolbox_Close(t *testing.T) {
	client := setupTestServer(t, "test-server", map[string]mcp.ToolHandler{"x": textResult("x")})
	box := NewToolbox(client)

	if err := box.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestHeaderTransportSetsHeaders(t *testing.T) {
	var got string
	rt := &headerTransport{
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			got = r.Header.Get("Authorization")
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
		}),
		headers: map[string]string{"Authorization": "Bearer tok"},
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/mcp", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if got != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", got)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("original request was modified")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func executions(t *testing.T, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := observability.ToolExecutionsTotal.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
