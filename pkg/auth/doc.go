// Package auth guards the chatbridge HTTP surface.
//
// Every client of a chatbridge server spends the same upstream API key.
// Middleware identifies the client through a Chain of authenticators
// (API keys, JWTs, or none), each voting Yes, No or Abstain. The resulting
// Identity carries a tier, which selects the client's request budget in the
// InProcessLimiter, and optional scopes, which RequireScope checks per
// route so that, for example, an IDE token may chat but not replace the
// stored API key.
package auth
