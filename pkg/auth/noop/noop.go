// Package noop provides an authenticator that accepts every request. It
// backs auth.type "none", where the server is expected to listen on a
// trusted interface only.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/chatbridge/pkg/auth"
)

// Subject is the identity assigned to unauthenticated callers.
const Subject = "local"

// Authenticator always votes Yes.
type Authenticator struct{}

func (Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.Result {
	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: Subject, Method: auth.MethodNone},
	}
}
