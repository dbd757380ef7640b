// Package secrets defines the secret store used to keep the provider API
// key, and the resolver that turns configuration plus store contents into
// the key passed to each provider call.
//
// Implementations live in subpackages: memory (tests, ephemeral servers),
// file (YAML file with 0600 permissions) and postgres.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/chatbridge/pkg/api"
	"github.com/rhuss/chatbridge/pkg/debug"
)

// APIKeyName is the key under which the provider API key is stored.
const APIKeyName = "chatbridge.apiKey"

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("secret not found")

// Store persists named secret values.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Store saves value under key, replacing any previous value.
	Store(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// Resolver yields the API key for provider calls. A statically configured
// key takes precedence over the store.
type Resolver struct {
	Static string
	Store  Store
}

// APIKey returns the usable API key or an authentication error when none
// is configured.
func (r *Resolver) APIKey(ctx context.Context) (string, error) {
	if key := strings.TrimSpace(r.Static); key != "" {
		debug.Log("secrets", "using configured API key")
		return key, nil
	}
	if r.Store != nil {
		key, err := r.Store.Get(ctx, APIKeyName)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return "", fmt.Errorf("reading API key: %w", err)
		default:
			if key = strings.TrimSpace(key); key != "" {
				debug.Log("secrets", "using stored API key")
				return key, nil
			}
		}
	}
	return "", api.NewAuthenticationError("no API key configured: run 'chatbridge key set' or set CHATBRIDGE_API_KEY")
}
