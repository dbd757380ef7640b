package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/chatbridge/pkg/api"
)

// clientName is announced to MCP servers during the handshake.
const clientName = "chatbridge"

// Client wraps an MCP SDK ClientSession for a single server. It handles
// the connection lifecycle, tool discovery and tool execution.
type Client struct {
	cfg     ServerConfig
	session *mcp.ClientSession

	mu       sync.Mutex
	tools    []api.ToolDefinition
	resolved bool
}

// NewClient creates a Client for cfg. Call Connect before use.
func NewClient(cfg ServerConfig) *Client {
	return &Client{cfg: cfg}
}

// Name returns the configured server name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Connect performs the MCP handshake with the configured server.
func (c *Client) Connect(ctx context.Context) error {
	t, err := c.createTransport()
	if err != nil {
		return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
	}
	return c.ConnectWithTransport(ctx, t)
}

// ConnectWithTransport performs the MCP handshake over t. Tests use it
// with in-memory transports.
func (c *Client) ConnectWithTransport(ctx context.Context, t mcp.Transport) error {
	client := mcp.NewClient(
		&mcp.Implementation{Name: clientName, Version: "1.0.0"},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)

	session, err := client.Connect(ctx, t, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session
	return nil
}

func (c *Client) createTransport() (mcp.Transport, error) {
	var httpClient *http.Client
	if len(c.cfg.Headers) > 0 {
		httpClient = &http.Client{
			Transport: &headerTransport{base: http.DefaultTransport, headers: c.cfg.Headers},
		}
	}

	switch c.cfg.Transport {
	case TransportSSE:
		return &mcp.SSEClientTransport{Endpoint: c.cfg.URL, HTTPClient: httpClient}, nil
	case TransportStreamableHTTP, "":
		return &mcp.StreamableClientTransport{Endpoint: c.cfg.URL, HTTPClient: httpClient}, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// headerTransport adds static headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// DiscoverTools lists the server's tools. The result is cached for the
// lifetime of the session.
func (c *Client) DiscoverTools(ctx context.Context) ([]api.ToolDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved {
		return c.tools, nil
	}
	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var defs []api.ToolDefinition
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		def, err := convertTool(tool)
		if err != nil {
			return nil, fmt.Errorf("converting tool %q from %q: %w", tool.Name, c.cfg.Name, err)
		}
		defs = append(defs, def)
	}

	c.tools = defs
	c.resolved = true
	return defs, nil
}

// CallTool executes a tool and returns its result content. A tool that
// reports failure yields isError; err is reserved for connection problems.
func (c *Client) CallTool(ctx context.Context, name string, input map[string]any) (content any, isError bool, err error) {
	if c.session == nil {
		return nil, false, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: input})
	if err != nil {
		return nil, false, fmt.Errorf("calling %q on %q: %w", name, c.cfg.Name, err)
	}
	return resultContent(result), result.IsError, nil
}

// Close closes the MCP session.
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// convertTool converts an MCP tool into a definition the model can call.
// The input schema is round-tripped through JSON because the SDK types it
// loosely.
func convertTool(t *mcp.Tool) (api.ToolDefinition, error) {
	def := api.ToolDefinition{Name: t.Name, Description: t.Description}
	if t.InputSchema == nil {
		return def, nil
	}

	data, err := json.Marshal(t.InputSchema)
	if err != nil {
		return def, fmt.Errorf("marshaling input schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return def, fmt.Errorf("input schema is not an object: %w", err)
	}
	def.InputSchema = schema
	return def, nil
}

// resultContent prefers structured content and otherwise joins the text
// blocks of the result.
func resultContent(result *mcp.CallToolResult) any {
	if result.StructuredContent != nil {
		return result.StructuredContent
	}
	var texts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}
