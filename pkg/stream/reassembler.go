package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/debug"
	"github.com/rhuss/chatbridge/pkg/provider"
)

// Placeholder is emitted when a completed stream produced neither text nor
// a tool call.
const Placeholder = " "

// genericFailure is reported for error chunks without a message.
const genericFailure = "upstream reported an error"

// toolCallAccumulator buffers one tool call across chunks.
type toolCallAccumulator struct {
	id     string
	name   string
	args   strings.Builder
	parsed bool
}

// Stats counts what a Reassembler emitted.
type Stats struct {
	TextParts     int
	ToolCallParts int
	ThinkingParts int
	Fallbacks     int
	Chunks        int

	// Usage is the last token usage reported by the upstream, if any.
	Usage *provider.Usage
}

// Reassembler turns an ordered sequence of stream chunks into response parts.
type Reassembler struct {
	state api.StreamState
	err   *api.APIError

	calls        map[int]*toolCallAccumulator
	thinkingOpen bool
	textReported bool
	toolReported bool

	stats Stats
}

// New returns a Reassembler in the idle state.
func New() *Reassembler {
	return &Reassembler{
		state: api.StreamIdle,
		calls: make(map[int]*toolCallAccumulator),
	}
}

// State returns the current lifecycle state.
func (r *Reassembler) State() api.StreamState {
	return r.state
}

// Err returns the failure that moved the stream to StreamFailed, or nil.
func (r *Reassembler) Err() *api.APIError {
	return r.err
}

// Stats returns emission counters.
func (r *Reassembler) Stats() Stats {
	return r.stats
}

// Process consumes one chunk and returns the parts it produces, in order.
// A chunk carrying an error fails the stream and returns that error; no
// later chunk is accepted.
func (r *Reassembler) Process(chunk *provider.StreamChunk) ([]api.ResponsePart, error) {
	if r.state == api.StreamIdle {
		if err := r.transition(api.StreamStreaming); err != nil {
			return nil, err
		}
	}
	if r.state != api.StreamStreaming {
		return nil, api.NewServerError(fmt.Sprintf("cannot process chunk in state %s", r.state))
	}
	if chunk == nil {
		return nil, nil
	}
	r.stats.Chunks++

	if chunk.Error != nil {
		msg := strings.TrimSpace(chunk.Error.Message)
		if msg == "" {
			msg = genericFailure
		}
		apiErr := api.NewProtocolError(msg)
		r.Fail(apiErr)
		return nil, apiErr
	}

	if chunk.Usage != nil {
		u := *chunk.Usage
		r.stats.Usage = &u
	}

	var parts []api.ResponsePart
	for _, choice := range chunk.Choices {
		parts = r.processDelta(choice.Delta, parts)
	}
	r.count(parts)
	return parts, nil
}

func (r *Reassembler) processDelta(d provider.ChunkDelta, parts []api.ResponsePart) []api.ResponsePart {
	if reasoning := d.ReasoningText(); reasoning != "" {
		parts = append(parts, api.ThinkingResponsePart{Text: reasoning})
		r.thinkingOpen = true
	} else if r.thinkingOpen {
		parts = append(parts, api.ThinkingResponsePart{Closed: true})
		r.thinkingOpen = false
	}

	// Whitespace-only fragments are suppressed.
	if text := d.Text(); strings.TrimSpace(text) != "" {
		parts = append(parts, api.TextResponsePart{Value: text})
		r.textReported = true
	}

	for _, fc := range d.ToolCalls {
		acc := r.calls[fc.Index]
		if acc == nil {
			acc = &toolCallAccumulator{}
			r.calls[fc.Index] = acc
		}
		if fc.ID != "" {
			acc.id = fc.ID
		}
		if fc.Function.Name != "" {
			acc.name = fc.Function.Name
		}
		acc.args.WriteString(fc.Function.Arguments)

		input, ok := parseArguments(acc.args.String())
		if !ok {
			debug.Log("streaming", "tool call arguments incomplete", "index", fc.Index, "bytes", acc.args.Len())
			continue
		}
		acc.parsed = true
		r.toolReported = true
		parts = append(parts, api.ToolCallResponsePart{
			CallID: acc.callID(),
			Name:   acc.name,
			Input:  input,
			Index:  fc.Index,
		})
	}
	return parts
}

// Finish completes the stream and returns the terminal parts: fallbacks for
// tool calls whose arguments never parsed (in index order), the close of
// an open reasoning segment, and the placeholder when nothing was reported.
// It returns nil if the stream already ended.
func (r *Reassembler) Finish() []api.ResponsePart {
	if r.state == api.StreamIdle {
		if err := r.transition(api.StreamStreaming); err != nil {
			return nil
		}
	}
	if err := r.transition(api.StreamCompleted); err != nil {
		return nil
	}

	var parts []api.ResponsePart

	indexes := make([]int, 0, len(r.calls))
	for idx := range r.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		acc := r.calls[idx]
		if acc.parsed || acc.args.Len() == 0 {
			continue
		}
		slog.Warn("tool call arguments are not valid JSON, using empty input",
			"call_id", acc.callID(), "name", acc.name, "arguments", debug.Truncate(acc.args.String(), 200))
		parts = append(parts, api.ToolCallResponsePart{
			CallID: acc.callID(),
			Name:   acc.name,
			Input:  map[string]any{},
			Index:  idx,
		})
		r.toolReported = true
		r.stats.Fallbacks++
	}

	if r.thinkingOpen {
		parts = append(parts, api.ThinkingResponsePart{Closed: true})
		r.thinkingOpen = false
	}

	if !r.textReported && !r.toolReported {
		parts = append(parts, api.TextResponsePart{Value: Placeholder})
	}

	r.calls = nil
	r.count(parts)
	return parts
}

// Cancel abandons the stream. Buffered tool calls are discarded and no
// terminal parts are produced.
func (r *Reassembler) Cancel() {
	if r.transition(api.StreamCancelled) == nil {
		r.calls = nil
	}
}

// Fail moves the stream to StreamFailed with err as the reason.
func (r *Reassembler) Fail(err *api.APIError) {
	if r.transition(api.StreamFailed) == nil {
		r.err = err
		r.calls = nil
	}
}

func (r *Reassembler) transition(to api.StreamState) *api.APIError {
	if err := api.ValidateStreamTransition(r.state, to); err != nil {
		return err
	}
	debug.Log("streaming", "state transition", "from", r.state, "to", to)
	r.state = to
	return nil
}

func (r *Reassembler) count(parts []api.ResponsePart) {
	for _, p := range parts {
		switch p.(type) {
		case api.TextResponsePart:
			r.stats.TextParts++
		case api.ToolCallResponsePart:
			r.stats.ToolCallParts++
		case api.ThinkingResponsePart:
			r.stats.ThinkingParts++
		}
	}
}

// callID returns the upstream call id, synthesizing a stable one when the
// upstream has not sent any yet. A later upstream id still replaces it.
func (a *toolCallAccumulator) callID() string {
	if a.id == "" {
		a.id = api.NewToolCallID()
	}
	return a.id
}

// parseArguments decodes a complete JSON object. Incomplete text and
// non-object values report false.
func parseArguments(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, false
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(s), &input); err != nil {
		return nil, false
	}
	return input, true
}
