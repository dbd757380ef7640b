package api

import (
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDPrefix  = "req_"
	toolCallIDPrefix = "call_"
)

// NewRequestID generates a request identifier of the form "req_" followed
// by a random UUID without dashes.
func NewRequestID() string {
	return requestIDPrefix + compactUUID()
}

// NewToolCallID generates an identifier for a tool call whose provider
// never supplied one.
func NewToolCallID() string {
	return toolCallIDPrefix + compactUUID()
}

// ValidateRequestID reports whether id looks like a value from NewRequestID.
func ValidateRequestID(id string) bool {
	rest, ok := strings.CutPrefix(id, requestIDPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
