// Package apikey authenticates chatbridge clients by static API keys.
// Keys are kept only as SHA-256 hashes and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/rhuss/chatbridge/pkg/auth"
)

// HeaderName is the alternative header for clients that cannot set
// Authorization.
const HeaderName = "X-API-Key"

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates bearer tokens against a static key set.
type Authenticator struct {
	keys []keyEntry
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New creates an authenticator from raw keys. Blank keys are skipped and
// entries without a subject are named after their position.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for i, e := range entries {
		key := strings.TrimSpace(e.Key)
		if key == "" {
			continue
		}
		id := e.Identity
		if id.Subject == "" {
			id.Subject = fmt.Sprintf("apikey-%d", i)
		}
		id.Method = auth.MethodAPIKey
		a.keys = append(a.keys, keyEntry{hash: sha256.Sum256([]byte(key)), identity: id})
	}
	return a
}

// Len returns the number of usable keys.
func (a *Authenticator) Len() int {
	return len(a.keys)
}

// Authenticate looks for a key in the Authorization bearer token or the
// X-API-Key header. It abstains when neither is present, and votes No for
// an unknown key.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	token, present := credential(r)
	if !present {
		return auth.Result{Decision: auth.Abstain}
	}
	if token == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	tokenHash := sha256.Sum256([]byte(token))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.hash[:]) == 1 {
			id := entry.identity
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

func credential(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if ok {
			return strings.TrimSpace(token), true
		}
	}
	if values, ok := r.Header[http.CanonicalHeaderKey(HeaderName)]; ok && len(values) > 0 {
		return strings.TrimSpace(values[0]), true
	}
	return "", false
}
