package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/observability"
)

// Toolbox routes tool calls to the MCP server that provides each tool.
// When two servers offer the same tool name, the first server wins.
type Toolbox struct {
	clients []*Client

	// allowed restricts the tools offered and executed. Empty allows all.
	allowed map[string]bool

	mu         sync.Mutex
	discovered bool
	defs       []api.ToolDefinition
	byTool     map[string]*Client
}

// NewToolbox creates a Toolbox over connected clients.
func NewToolbox(clients ...*Client) *Toolbox {
	return &Toolbox{clients: clients}
}

// AllowTools restricts the toolbox to the named tools. Calling it with no
// names lifts the restriction. It must be called before Tools.
func (b *Toolbox) AllowTools(names ...string) *Toolbox {
	b.allowed = nil
	for _, n := range names {
		if b.allowed == nil {
			b.allowed = make(map[string]bool, len(names))
		}
		b.allowed[n] = true
	}
	return b
}

func (b *Toolbox) isAllowed(name string) bool {
	return len(b.allowed) == 0 || b.allowed[name]
}

// Connect connects to every configured server. If any connection fails
// the already connected ones are closed again.
func Connect(ctx context.Context, cfgs []ServerConfig) (*Toolbox, error) {
	clients := make([]*Client, 0, len(cfgs))
	for _, cfg := range cfgs {
		c := NewClient(cfg)
		if err := c.Connect(ctx); err != nil {
			for _, open := range clients {
				open.Close()
			}
			return nil, err
		}
		clients = append(clients, c)
	}
	return NewToolbox(clients...), nil
}

// Tools returns the tools of all servers. Discovery happens once; a
// server that fails to list its tools is logged and skipped.
func (b *Toolbox) Tools(ctx context.Context) []api.ToolDefinition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.discovered {
		return b.defs
	}

	b.byTool = make(map[string]*Client)
	for _, c := range b.clients {
		defs, err := c.DiscoverTools(ctx)
		if err != nil {
			slog.Error("failed to discover tools from MCP server", "server", c.Name(), "error", err)
			continue
		}
		for _, def := range defs {
			if !b.isAllowed(def.Name) {
				debug.Log("mcp", "tool filtered by allow-list", "tool", def.Name, "server", c.Name())
				continue
			}
			if _, exists := b.byTool[def.Name]; exists {
				slog.Warn("duplicate MCP tool name, using first provider", "tool", def.Name, "server", c.Name())
				continue
			}
			b.byTool[def.Name] = c
			b.defs = append(b.defs, def)
		}
		debug.Log("mcp", "discovered tools", "server", c.Name(), "count", len(defs))
	}
	b.discovered = true
	return b.defs
}

// Execute runs a tool call and returns the result to hand back to the
// model. Failures are reported inside the result so the model can react.
func (b *Toolbox) Execute(ctx context.Context, call api.ToolCallResponsePart) api.ToolResultPart {
	b.Tools(ctx)

	if !b.isAllowed(call.Name) {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "rejected").Inc()
		return api.ToolResultPart{CallID: call.CallID, Content: fmt.Sprintf("error: tool %q is not in the allowed tools list", call.Name)}
	}

	b.mu.Lock()
	client, ok := b.byTool[call.Name]
	b.mu.Unlock()

	if !ok {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "unknown").Inc()
		return api.ToolResultPart{CallID: call.CallID, Content: fmt.Sprintf("error: no MCP server provides tool %q", call.Name)}
	}

	debug.Log("mcp", "calling tool", "tool", call.Name, "server", client.Name(), "call_id", call.CallID)
	content, isError, err := client.CallTool(ctx, call.Name, call.Input)
	switch {
	case err != nil:
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "error").Inc()
		slog.Warn("MCP tool call failed", "tool", call.Name, "server", client.Name(), "error", err)
		return api.ToolResultPart{CallID: call.CallID, Content: "error: " + err.Error()}
	case isError:
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "error").Inc()
		return api.ToolResultPart{CallID: call.CallID, Content: fmt.Sprintf("error: %v", content)}
	default:
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "ok").Inc()
		return api.ToolResultPart{CallID: call.CallID, Content: content}
	}
}

// Close closes every server session.
func (b *Toolbox) Close() error {
	var errs []error
	for _, c := range b.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %q: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
