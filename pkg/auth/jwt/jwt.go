// Package jwt authenticates chatbridge clients by HMAC-signed bearer
// tokens issued with a shared secret.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rhuss/chatbridge/pkg/auth"
	"github.com/rhuss/chatbridge/pkg/debug"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the HMAC key tokens are signed with. Required.
	Secret string

	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string

	// Audience is the expected aud claim. If empty, audience is not validated.
	Audience string

	// UserClaim is the claim used as the identity subject. Default: "sub".
	UserClaim string

	// TierClaim selects the rate-limit tier. Default: "tier".
	TierClaim string

	// ScopesClaim holds authorization scopes, either space separated or a
	// JSON array. Default: "scope".
	ScopesClaim string
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
}

// Authenticator validates HS256/384/512 bearer tokens.
type Authenticator struct {
	config Config
	key    []byte
	parser *jwtlib.Parser
}

// New creates a JWT authenticator. It fails when no secret is configured.
func New(cfg Config) (*Authenticator, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("jwt: secret is required")
	}
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{
		config: cfg,
		key:    []byte(cfg.Secret),
		parser: jwtlib.NewParser(opts...),
	}, nil
}

// Authenticate extracts a bearer token from the Authorization header and
// validates it.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: token present but invalid (expired, wrong issuer, bad signature, etc.)
//   - Yes: valid token with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	tokenStr, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return auth.Result{Decision: auth.No, Err: errors.New("empty bearer token")}
	}

	claims := jwtlib.MapClaims{}
	token, err := a.parser.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (any, error) {
		return a.key, nil
	})
	if err != nil || !token.Valid {
		debug.Log("auth", "JWT validation failed", "error", err)
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return auth.Result{
			Decision: auth.No,
			Err:      fmt.Errorf("JWT missing %q claim", a.config.UserClaim),
		}
	}

	scopes, err := extractScopes(claims, a.config.ScopesClaim)
	if err != nil {
		return auth.Result{Decision: auth.No, Err: err}
	}
	identity := &auth.Identity{
		Subject: subject,
		Method:  auth.MethodJWT,
		Tier:    claimString(claims, a.config.TierClaim),
		Issuer:  claimString(claims, "iss"),
		Scopes:  scopes,
	}
	return auth.Result{Decision: auth.Yes, Identity: identity}
}

// Sign issues a token with the authenticator's secret, filling iss and aud
// from the configuration when claims lacks them.
func (a *Authenticator) Sign(claims jwtlib.MapClaims) (string, error) {
	if a.config.Issuer != "" {
		if _, ok := claims["iss"]; !ok {
			claims["iss"] = a.config.Issuer
		}
	}
	if a.config.Audience != "" {
		if _, ok := claims["aud"]; !ok {
			claims["aud"] = a.config.Audience
		}
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.key)
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes accepts "chat models" as well as ["chat","models"]. A token
// without the claim is unrestricted. Unknown scope names are an error.
func extractScopes(claims jwtlib.MapClaims, key string) ([]string, error) {
	var scopes []string
	switch v := claims[key].(type) {
	case nil:
		return nil, nil
	case string:
		scopes = strings.Fields(v)
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("JWT %q claim holds a non-string value", key)
			}
			scopes = append(scopes, s)
		}
	default:
		return nil, fmt.Errorf("JWT %q claim must be a string or an array", key)
	}
	for _, s := range scopes {
		if !slices.Contains(auth.AllScopes, s) {
			return nil, fmt.Errorf("JWT grants unknown scope %q", s)
		}
	}
	if scopes == nil {
		scopes = []string{}
	}
	return scopes, nil
}
