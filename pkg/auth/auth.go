package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
)

// Decision is an authenticator's vote on a request.
type Decision int

const (
	// Yes accepts the request with the returned identity.
	Yes Decision = iota

	// No rejects the request; the credentials were present but wrong.
	No

	// Abstain passes the request to the next authenticator in the chain.
	Abstain
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "abstain"
	}
}

// Result is what an Authenticator returns. Identity is set for Yes, Err
// for No.
type Result struct {
	Decision Decision
	Identity *Identity
	Err      error
}

// Method names how a caller proved who it is.
type Method string

const (
	MethodNone   Method = "none"
	MethodAPIKey Method = "apikey"
	MethodJWT    Method = "jwt"
)

// Scopes grant access to groups of chatbridge routes.
const (
	ScopeChat   = "chat"   // POST and DELETE /v1/chat
	ScopeModels = "models" // model listing and refresh
	ScopeKeys   = "keys"   // replacing or removing the upstream API key
)

// AllScopes lists every scope a caller can be granted.
var AllScopes = []string{ScopeChat, ScopeModels, ScopeKeys}

// Identity is an authenticated chatbridge client. All clients share the
// upstream API key, so the identity decides what a client may do with it
// and how often.
type Identity struct {
	Subject string
	Method  Method

	// Tier selects the request budget; empty means DefaultTier.
	Tier string

	// Issuer is the iss claim of a JWT.
	Issuer string

	// Scopes restricts the routes the client may call. Nil grants all.
	Scopes []string
}

// DefaultTier is the budget used for identities without a tier.
const DefaultTier = "default"

// EffectiveTier returns Tier, or DefaultTier when unset.
func (id *Identity) EffectiveTier() string {
	if id.Tier == "" {
		return DefaultTier
	}
	return id.Tier
}

// Allows reports whether the identity may use routes guarded by scope.
func (id *Identity) Allows(scope string) bool {
	return id.Scopes == nil || slices.Contains(id.Scopes, scope)
}

// Authenticator votes on the credentials of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// anonymous is the identity of requests admitted by AllowAnonymous.
var anonymous = Identity{Subject: "anonymous", Method: MethodNone}

// Chain asks its authenticators in order until one votes Yes or No.
type Chain struct {
	Authenticators []Authenticator

	// AllowAnonymous admits requests no authenticator claimed. Otherwise
	// they are rejected.
	AllowAnonymous bool
}

// Authenticate returns the first non-abstaining vote. When all abstain the
// request is admitted as "anonymous" or rejected, per AllowAnonymous.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, authn := range c.Authenticators {
		if res := authn.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	if c.AllowAnonymous {
		id := anonymous
		return Result{Decision: Yes, Identity: &id}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}
