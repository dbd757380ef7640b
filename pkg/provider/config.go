package provider

import (
	"strings"
	"time"
)

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config holds settings shared by every Transport implementation.
type Config struct {
	// BaseURL is the API root; "/chat/completions" and "/models" are
	// appended to it. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout for non-streaming requests. Streams are bounded by their
	// context only. Defaults to 120s.
	Timeout time.Duration

	// Referer and Title are sent as the HTTP-Referer and X-Title
	// attribution headers when set.
	Referer string
	Title   string
}

// Normalize fills defaults and strips a trailing slash from BaseURL.
func (c Config) Normalize() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
	return c
}
