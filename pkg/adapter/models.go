package adapter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/provider"
	"github.com/tidwall/gjson"
)

// Fallback token bounds used when the provider reports none.
const (
	DefaultContextLength   = 4096
	DefaultMaxOutputTokens = 4096
)

// UnknownFamily is reported for ids without an "org/" segment.
const UnknownFamily = "unknown"

const maxTooltipLen = 200

// ToHostModelDescriptor converts a provider model record. Missing optional
// fields never cause an error; token bounds fall back to the defaults.
func (a Adapter) ToHostModelDescriptor(m provider.Model) api.ModelDescriptor {
	name := m.Name
	if name == "" {
		name = m.ID
	}

	family, version := UnknownFamily, m.ID
	if org, rest, ok := strings.Cut(m.ID, "/"); ok {
		family, version = org, rest
	}

	maxInput := m.ContextLength
	if maxInput <= 0 && m.TopProvider != nil {
		maxInput = m.TopProvider.ContextLength
	}
	if maxInput <= 0 {
		maxInput = DefaultContextLength
	}

	maxOutput := 0
	if m.TopProvider != nil {
		maxOutput = m.TopProvider.MaxCompletionTokens
	}
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputTokens
	}

	var caps api.ModelCapabilities
	if m.Architecture != nil {
		caps.ImageInput = slices.Contains(m.Architecture.InputModalities, "image")
	}
	caps.ToolCalling = slices.Contains(m.SupportedParameters, "tools")

	pricing := FormatPricing(m.Pricing)

	return api.ModelDescriptor{
		ID:              a.ToHostModelID(m.ID),
		Name:            name,
		Family:          family,
		Version:         version,
		MaxInputTokens:  maxInput,
		MaxOutputTokens: maxOutput,
		Capabilities:    caps,
		Pricing:         pricing,
		Tooltip:         tooltip(m.Description, pricing),
	}
}

// ToHostModelDescriptors converts a model listing, preserving order.
func (a Adapter) ToHostModelDescriptors(models []provider.Model) []api.ModelDescriptor {
	out := make([]api.ModelDescriptor, 0, len(models))
	for _, m := range models {
		out = append(out, a.ToHostModelDescriptor(m))
	}
	return out
}

// FormatPricing renders pricing entries as "key: value" pairs joined by
// ", " in source order. Numbers are printed with four decimals, null as
// "N/A", and everything else verbatim.
func FormatPricing(p provider.Pricing) string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p))
	for _, e := range p {
		parts = append(parts, e.Key+": "+formatPrice(e.Value))
	}
	return strings.Join(parts, ", ")
}

func formatPrice(v gjson.Result) string {
	switch v.Type {
	case gjson.Number:
		return fmt.Sprintf("%.4f", v.Float())
	case gjson.String:
		return v.Str
	case gjson.Null:
		return "N/A"
	default:
		return v.Raw
	}
}

// FilterModels keeps descriptors whose host id or native id appears in
// allow. An empty allow list keeps everything.
func (a Adapter) FilterModels(descs []api.ModelDescriptor, allow []string) []api.ModelDescriptor {
	if len(allow) == 0 {
		return descs
	}
	allowed := make(map[string]bool, len(allow))
	for _, id := range allow {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = true
		}
	}
	var out []api.ModelDescriptor
	for _, d := range descs {
		if allowed[d.ID] || allowed[a.ToProviderModelID(d.ID)] {
			out = append(out, d)
		}
	}
	return out
}

func tooltip(description, pricing string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(description), "\n")
	if r := []rune(line); len(r) > maxTooltipLen {
		line = string(r[:maxTooltipLen]) + "..."
	}
	switch {
	case line == "":
		return pricing
	case pricing == "":
		return line
	default:
		return line + " (" + pricing + ")"
	}
}
