package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/tools/mcp"
	"github.com/rhuss/chatbridge/pkg/transport"
)

var (
	chatModel    string
	chatMaxTurns int
	chatSystem   string
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Stream a response to the terminal",
	Long: `Send a prompt and stream the response to the terminal.

Tools offered by the configured MCP servers are passed to the model. Tool
calls are executed and their results sent back until the model answers
without calling a tool or --max-turns is reached.

Examples:
  chatbridge chat "What is the capital of France?"
  chatbridge chat --model openrouter/openai/gpt-4o-mini "Summarize RFC 9110"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Host model id (default: settings.default_model)")
	chatCmd.Flags().IntVar(&chatMaxTurns, "max-turns", 0, "Maximum model calls (default: settings.max_turns)")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "System message for this conversation")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.close()

	var tools toolRunner
	if len(cfg.MCP.Servers) > 0 {
		box, err := mcp.Connect(ctx, mcpServers(cfg.MCP.Servers))
		if err != nil {
			return fmt.Errorf("connecting MCP servers: %w", err)
		}
		defer box.Close()
		tools = box.AllowTools(cfg.MCP.AllowedTools...)
	}

	maxTurns := chatMaxTurns
	if maxTurns <= 0 {
		maxTurns = cfg.Settings.MaxTurns
	}

	c := conversation{
		responder: comps.service,
		tools:     tools,
		model:     chatModel,
		maxTurns:  maxTurns,
		out:       cmd.OutOrStdout(),
	}
	if chatSystem != "" {
		c.messages = append(c.messages, textMessage(api.RoleSystem, chatSystem))
	}
	return c.run(ctx, strings.Join(args, " "))
}

// toolRunner executes the tool calls a model returns.
type toolRunner interface {
	Tools(ctx context.Context) []api.ToolDefinition
	Execute(ctx context.Context, call api.ToolCallResponsePart) api.ToolResultPart
}

// conversation drives the request loop of one terminal chat.
type conversation struct {
	responder transport.Responder
	tools     toolRunner
	model     string
	maxTurns  int
	out       io.Writer

	messages []api.ChatMessage
}

func (c *conversation) run(ctx context.Context, prompt string) error {
	c.messages = append(c.messages, textMessage(api.RoleUser, prompt))

	var defs []api.ToolDefinition
	if c.tools != nil {
		defs = c.tools.Tools(ctx)
	}

	for turn := 1; turn <= c.maxTurns; turn++ {
		sink := &terminalSink{out: c.out}
		req := &api.ChatRequest{Model: c.model, Messages: c.messages, Tools: defs}
		err := c.responder.ProvideResponse(ctx, req, sink)
		sink.endLine()
		if err != nil {
			return err
		}
		if len(sink.calls) == 0 {
			return nil
		}
		if c.tools == nil {
			return fmt.Errorf("model requested tool %q but no MCP servers are configured", sink.calls[0].Name)
		}

		c.messages = append(c.messages, sink.assistantMessage())
		results := make([]api.ContentPart, 0, len(sink.calls))
		for _, call := range sink.calls {
			res := c.tools.Execute(ctx, call)
			fmt.Fprintf(c.out, "[result %s] %s\n", call.Name, debug.Truncate(resultText(res.Content), 200))
			results = append(results, res)
		}
		c.messages = append(c.messages, api.ChatMessage{Role: api.RoleTool, Content: results})
		debug.Log("mcp", "tool turn finished", "turn", turn, "calls", len(sink.calls))
	}
	return fmt.Errorf("stopped after %d turns without a final answer", c.maxTurns)
}

func resultText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func textMessage(role api.Role, text string) api.ChatMessage {
	return api.ChatMessage{Role: role, Content: []api.ContentPart{api.TextPart{Value: text}}}
}

// terminalSink writes parts to the terminal as they arrive and keeps what
// the next turn needs.
type terminalSink struct {
	out      io.Writer
	thinking bool
	dirty    bool

	text  strings.Builder
	calls []api.ToolCallResponsePart
}

func (s *terminalSink) Emit(part api.ResponsePart) error {
	switch p := part.(type) {
	case api.ThinkingResponsePart:
		if p.Closed {
			s.endThinking()
			return nil
		}
		if !s.thinking {
			s.write("[thinking] ")
			s.thinking = true
		}
		s.write(p.Text)
	case api.TextResponsePart:
		s.endThinking()
		s.text.WriteString(p.Value)
		s.write(p.Value)
	case api.ToolCallResponsePart:
		s.endThinking()
		// A call is emitted again when its arguments reparse or its id
		// arrives late. Keep only the latest version.
		for i := range s.calls {
			if s.calls[i].Index == p.Index {
				debug.Log("mcp", "tool call updated", "call_id", p.CallID, "index", p.Index)
				s.calls[i] = p
				return nil
			}
		}
		s.endLine()
		input, err := json.Marshal(p.Input)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "[tool %s] %s\n", p.Name, input)
		s.calls = append(s.calls, p)
	}
	return nil
}

func (s *terminalSink) write(text string) {
	if text == "" {
		return
	}
	io.WriteString(s.out, text)
	s.dirty = !strings.HasSuffix(text, "\n")
}

func (s *terminalSink) endThinking() {
	if s.thinking {
		s.thinking = false
		s.endLine()
	}
}

func (s *terminalSink) endLine() {
	if s.dirty {
		io.WriteString(s.out, "\n")
		s.dirty = false
	}
}

// assistantMessage replays the turn's text and tool calls as history.
func (s *terminalSink) assistantMessage() api.ChatMessage {
	msg := api.ChatMessage{Role: api.RoleAssistant}
	if s.text.Len() > 0 {
		msg.Content = append(msg.Content, api.TextPart{Value: s.text.String()})
	}
	for _, call := range s.calls {
		msg.Content = append(msg.Content, api.ToolCallPart{CallID: call.CallID, Name: call.Name, Input: call.Input})
	}
	return msg
}
