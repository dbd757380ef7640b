package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// WeatherInput is the argument object of the get_weather tool.
type WeatherInput struct {
	Location string `json:"location" jsonschema:"City to report the weather for"`
}

// WeatherOutput is the structured result of the get_weather tool.
type WeatherOutput struct {
	Location string `json:"location"`
	Forecast string `json:"forecast"`
	Celsius  int    `json:"celsius"`
}

type echoInput struct {
	Message string `json:"message"`
}

// NewMCPServer returns an MCP server offering get_weather, which pairs
// with the "weather" chat scenario, and echo.
func NewMCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "chatbridge-mock-tools", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_weather",
		Description: "Returns the current weather for a city",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in WeatherInput) (*mcp.CallToolResult, WeatherOutput, error) {
		if in.Location == "" {
			return nil, WeatherOutput{}, fmt.Errorf("location is required")
		}
		return nil, WeatherOutput{Location: in.Location, Forecast: "sunny", Celsius: 21}, nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"message": map[string]any{"type": "string"}},
		},
	}, func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in echoInput
		if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Echo: " + in.Message}},
		}, nil
	})

	return server
}

// MCPHandler serves NewMCPServer over streamable HTTP.
func MCPHandler() http.Handler {
	server := NewMCPServer()
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
