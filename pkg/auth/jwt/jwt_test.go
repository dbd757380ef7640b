package jwt

import (
	"context"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rhuss/chatbridge/pkg/auth"
)

const testSecret = "test-hmac-secret"

func newTestAuthenticator(t *testing.T, cfgOverride func(*Config)) *Authenticator {
	t.Helper()
	cfg := Config{
		Secret:   testSecret,
		Issuer:   "https://auth.example.com",
		Audience: "chatbridge",
	}
	if cfgOverride != nil {
		cfgOverride(&cfg)
	}
	authn, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return authn
}

func validClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"sub": "user-123",
		"iss": "https://auth.example.com",
		"aud": "chatbridge",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func signWith(t *testing.T, secret string, method jwtlib.SigningMethod, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return s
}

func authenticate(authn *Authenticator, header string) auth.Result {
	r := httptest.NewRequest("GET", "/", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return authn.Authenticate(context.Background(), r)
}

func TestNew_RequiresSecret(t *testing.T) {
	if _, err := New(Config{Secret: "  "}); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestJWT_ValidToken(t *testing.T) {
	authn := newTestAuthenticator(t, nil)
	claims := validClaims()
	claims["tier"] = "premium"

	result := authenticate(authn, "Bearer "+signWith(t, testSecret, jwtlib.SigningMethodHS256, claims))

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Subject != "user-123" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "user-123")
	}
	id := result.Identity
	if id.Tier != "premium" || id.Method != auth.MethodJWT {
		t.Errorf("Tier = %q, Method = %q", id.Tier, id.Method)
	}
	if id.Issuer != "https://auth.example.com" {
		t.Errorf("Issuer = %q", id.Issuer)
	}
	if id.Scopes != nil {
		t.Errorf("Scopes = %v, want nil for a token without scope claim", id.Scopes)
	}
}

func TestJWT_Rejected(t *testing.T) {
	authn := newTestAuthenticator(t, nil)

	tests := []struct {
		name   string
		mutate func(jwtlib.MapClaims)
		secret string
		method jwtlib.SigningMethod
	}{
		{"expired", func(c jwtlib.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }, testSecret, jwtlib.SigningMethodHS256},
		{"missing exp", func(c jwtlib.MapClaims) { delete(c, "exp") }, testSecret, jwtlib.SigningMethodHS256},
		{"wrong audience", func(c jwtlib.MapClaims) { c["aud"] = "other" }, testSecret, jwtlib.SigningMethodHS256},
		{"wrong issuer", func(c jwtlib.MapClaims) { c["iss"] = "https://evil.example.com" }, testSecret, jwtlib.SigningMethodHS256},
		{"wrong secret", func(jwtlib.MapClaims) {}, "not-the-secret", jwtlib.SigningMethodHS256},
		{"missing subject", func(c jwtlib.MapClaims) { delete(c, "sub") }, testSecret, jwtlib.SigningMethodHS256},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims := validClaims()
			tc.mutate(claims)
			result := authenticate(authn, "Bearer "+signWith(t, tc.secret, tc.method, claims))
			if result.Decision != auth.No {
				t.Fatalf("Decision = %d, want No", result.Decision)
			}
			if result.Err == nil {
				t.Error("expected an error for a No decision")
			}
		})
	}
}

func TestJWT_NoneAlgorithmRejected(t *testing.T) {
	authn := newTestAuthenticator(t, nil)
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, validClaims()).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	if result := authenticate(authn, "Bearer "+token); result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No for alg=none", result.Decision)
	}
}

func TestJWT_NoBearerToken(t *testing.T) {
	authn := newTestAuthenticator(t, nil)

	for _, header := range []string{"", "Basic dXNlcjpwYXNz"} {
		if result := authenticate(authn, header); result.Decision != auth.Abstain {
			t.Errorf("header %q: Decision = %d, want Abstain", header, result.Decision)
		}
	}
}

func TestJWT_InvalidToken(t *testing.T) {
	authn := newTestAuthenticator(t, nil)

	for _, token := range []string{"not-a-jwt", "", "eyJhbGciOiJIUzI1NiJ9.invalidpayload"} {
		if result := authenticate(authn, "Bearer "+token); result.Decision != auth.No {
			t.Errorf("token %q: Decision = %d, want No", token, result.Decision)
		}
	}
}

func TestJWT_Scopes(t *testing.T) {
	authn := newTestAuthenticator(t, nil)

	tests := []struct {
		name  string
		scope any
		want  []string
	}{
		{"string", "chat models", []string{auth.ScopeChat, auth.ScopeModels}},
		{"array", []any{"chat", "keys"}, []string{auth.ScopeChat, auth.ScopeKeys}},
		{"empty grants nothing", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			claims["scope"] = tt.scope
			result := authenticate(authn, "Bearer "+signWith(t, testSecret, jwtlib.SigningMethodHS256, claims))
			if result.Decision != auth.Yes {
				t.Fatalf("Decision = %s, want Yes; err=%v", result.Decision, result.Err)
			}
			if !reflect.DeepEqual(result.Identity.Scopes, tt.want) {
				t.Errorf("Scopes = %#v, want %#v", result.Identity.Scopes, tt.want)
			}
		})
	}
}

func TestJWT_BadScopesRejected(t *testing.T) {
	authn := newTestAuthenticator(t, nil)

	for name, scope := range map[string]any{
		"unknown name": "chat admin",
		"non-string":   []any{"chat", 7},
		"wrong type":   42.0,
	} {
		t.Run(name, func(t *testing.T) {
			claims := validClaims()
			claims["scope"] = scope
			result := authenticate(authn, "Bearer "+signWith(t, testSecret, jwtlib.SigningMethodHS256, claims))
			if result.Decision != auth.No || result.Err == nil {
				t.Fatalf("result = %+v, want No with error", result)
			}
		})
	}
}

func TestJWT_CustomUserClaim(t *testing.T) {
	authn := newTestAuthenticator(t, func(c *Config) { c.UserClaim = "email" })
	claims := validClaims()
	claims["email"] = "dev@example.com"

	result := authenticate(authn, "Bearer "+signWith(t, testSecret, jwtlib.SigningMethodHS256, claims))
	if result.Decision != auth.Yes || result.Identity.Subject != "dev@example.com" {
		t.Fatalf("result = %+v, want subject from email claim", result)
	}
}

func TestJWT_NoIssuerOrAudienceValidation(t *testing.T) {
	authn := newTestAuthenticator(t, func(c *Config) {
		c.Issuer = ""
		c.Audience = ""
	})
	claims := validClaims()
	claims["iss"] = "anyone"
	claims["aud"] = "anything"

	result := authenticate(authn, "Bearer "+signWith(t, testSecret, jwtlib.SigningMethodHS384, claims))
	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
	}
}

func TestJWT_SignRoundTrip(t *testing.T) {
	authn := newTestAuthenticator(t, nil)
	token, err := authn.Sign(jwtlib.MapClaims{
		"sub": "minted",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	result := authenticate(authn, "Bearer "+token)
	if result.Decision != auth.Yes || result.Identity.Subject != "minted" {
		t.Fatalf("result = %+v, want minted identity", result)
	}
}
