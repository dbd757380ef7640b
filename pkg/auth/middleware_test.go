package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/chatbridge/pkg/observability"
)

// serve runs one request through Middleware and returns the recorder and
// the identity the inner handler saw.
func serve(t *testing.T, chain *Chain, limiter RateLimiter, method, path string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	var seen *Identity
	h := Middleware(chain, limiter, DefaultBypassEndpoints)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec, seen
}

func TestMiddlewareBypass(t *testing.T) {
	for _, path := range DefaultBypassEndpoints {
		rec, id := serve(t, &Chain{}, nil, "GET", path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
		if id != nil {
			t.Errorf("%s: bypassed request carries identity %+v", path, id)
		}
	}
}

func TestMiddlewareRejects(t *testing.T) {
	rec, _ := serve(t, &Chain{Authenticators: []Authenticator{no()}}, nil, "POST", "/v1/chat")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"type":"authentication_error"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMiddlewareEmptySubject(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{&vote{res: Result{Decision: Yes, Identity: &Identity{Method: MethodJWT}}}}}
	rec, id := serve(t, chain, nil, "GET", "/v1/models")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if id != nil {
		t.Error("handler ran for an identity without subject")
	}
}

func TestMiddlewareStoresIdentity(t *testing.T) {
	chain := &Chain{Authenticators: []Authenticator{abstain(), yes("alice")}}
	rec, id := serve(t, chain, nil, "POST", "/v1/chat")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if id == nil || id.Subject != "alice" || id.Method != MethodAPIKey {
		t.Errorf("identity = %+v", id)
	}
}

func TestMiddlewareTierBudget(t *testing.T) {
	gold := &vote{res: Result{Decision: Yes, Identity: &Identity{Subject: "ide-gold", Tier: "gold"}}}
	chain := &Chain{Authenticators: []Authenticator{gold}}
	limiter := NewInProcessLimiter(Limits{PerMinute: 100, Tiers: map[string]int{"gold": 2}})
	before := rejected(t, "gold")

	for i := 0; i < 2; i++ {
		if rec, _ := serve(t, chain, limiter, "POST", "/v1/chat"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	rec, _ := serve(t, chain, limiter, "POST", "/v1/chat")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"type":"rate_limit_error"`) || !strings.Contains(rec.Body.String(), `"code":"rate_limited"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if got := rejected(t, "gold") - before; got != 1 {
		t.Errorf("rejections counted for gold = %v, want 1", got)
	}
}

func TestRequireScope(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireScope(ScopeKeys, inner)

	tests := []struct {
		name string
		id   *Identity
		want int
	}{
		{"no identity", nil, http.StatusNoContent},
		{"unrestricted", &Identity{Subject: "a"}, http.StatusNoContent},
		{"granted", &Identity{Subject: "a", Scopes: []string{ScopeChat, ScopeKeys}}, http.StatusNoContent},
		{"missing", &Identity{Subject: "a", Scopes: []string{ScopeChat}}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("PUT", "/v1/secrets/api-key", nil)
			if tt.id != nil {
				r = r.WithContext(WithIdentity(r.Context(), tt.id))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusForbidden && !strings.Contains(rec.Body.String(), `"type":"permission_error"`) {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestLimitsFor(t *testing.T) {
	l := Limits{PerMinute: 30, Tiers: map[string]int{"gold": 300, "free": 0}}
	for tier, want := range map[string]int{"gold": 300, "free": 0, DefaultTier: 30, "silver": 30} {
		if got := l.For(tier); got != want {
			t.Errorf("For(%q) = %d, want %d", tier, got, want)
		}
	}
	if !l.Enabled() {
		t.Error("Enabled() = false with a default budget")
	}
	if (Limits{Tiers: map[string]int{"free": 0}}).Enabled() {
		t.Error("Enabled() = true without any positive budget")
	}
	if !(Limits{Tiers: map[string]int{"gold": 5}}).Enabled() {
		t.Error("Enabled() = false with a tier budget")
	}
}

func TestInProcessLimiterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewInProcessLimiter(Limits{PerMinute: 1})
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	alice := &Identity{Subject: "alice"}
	if err := limiter.Allow(ctx, alice); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := limiter.Allow(ctx, alice); err != ErrTooManyRequests {
		t.Fatalf("second request: err = %v, want ErrTooManyRequests", err)
	}
	if err := limiter.Allow(ctx, &Identity{Subject: "bob"}); err != nil {
		t.Errorf("bob shares alice's budget: %v", err)
	}

	now = now.Add(time.Minute)
	if err := limiter.Allow(ctx, alice); err != nil {
		t.Errorf("after window: %v", err)
	}
}

func TestInProcessLimiterTiersSeparate(t *testing.T) {
	limiter := NewInProcessLimiter(Limits{PerMinute: 1, Tiers: map[string]int{"gold": 3}})
	ctx := context.Background()

	// The same subject under another tier has its own counter.
	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, &Identity{Subject: "ide", Tier: "gold"}); err != nil {
			t.Fatalf("gold request %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, &Identity{Subject: "ide"}); err != nil {
		t.Errorf("default tier: %v", err)
	}
}

func TestInProcessLimiterUnlimitedTier(t *testing.T) {
	limiter := NewInProcessLimiter(Limits{PerMinute: 1, Tiers: map[string]int{"internal": 0}})
	id := &Identity{Subject: "ci", Tier: "internal"}
	for i := 0; i < 10; i++ {
		if err := limiter.Allow(context.Background(), id); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
}

func TestInProcessLimiterSweeps(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewInProcessLimiter(Limits{PerMinute: 5})
	limiter.now = func() time.Time { return now }

	for _, s := range []string{"a", "b", "c"} {
		limiter.Allow(context.Background(), &Identity{Subject: s})
	}
	now = now.Add(2 * time.Minute)
	limiter.Allow(context.Background(), &Identity{Subject: "d"})

	if n := len(limiter.counters); n != 1 {
		t.Errorf("counters = %d after sweep, want 1", n)
	}
}

func rejected(t *testing.T, tier string) float64 {
	t.Helper()
	var m dto.Metric
	if err := observability.RateLimitRejectedTotal.WithLabelValues(tier).Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}
