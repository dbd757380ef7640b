package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter checks whether a request should be allowed for an identity.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// window is the span each request budget covers.
const window = time.Minute

// Limits holds request budgets per minute. A tier listed in Tiers uses its
// own budget, every other tier uses PerMinute. Non-positive budgets are
// unlimited.
type Limits struct {
	PerMinute int
	Tiers     map[string]int
}

// For returns the budget of tier.
func (l Limits) For(tier string) int {
	if n, ok := l.Tiers[tier]; ok {
		return n
	}
	return l.PerMinute
}

// Enabled reports whether any tier is limited.
func (l Limits) Enabled() bool {
	if l.PerMinute > 0 {
		return true
	}
	for _, n := range l.Tiers {
		if n > 0 {
			return true
		}
	}
	return false
}

// InProcessLimiter is a fixed-window limiter that counts requests per
// subject and tier in memory.
type InProcessLimiter struct {
	limits Limits
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
	swept    time.Time
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a limiter enforcing limits.
func NewInProcessLimiter(limits Limits) *InProcessLimiter {
	return &InProcessLimiter{
		limits:   limits,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// Allow returns ErrTooManyRequests once the subject used up the current
// window's budget for its tier.
func (l *InProcessLimiter) Allow(_ context.Context, id *Identity) error {
	tier := id.EffectiveTier()
	budget := l.limits.For(tier)
	if budget <= 0 {
		return nil
	}
	key := tier + "/" + id.Subject

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= window {
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}
	c.count++
	if c.count > budget {
		return ErrTooManyRequests
	}
	return nil
}

// sweep drops expired windows at most once per window. Caller holds l.mu.
func (l *InProcessLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < window {
		return
	}
	for key, c := range l.counters {
		if now.Sub(c.windowAt) >= window {
			delete(l.counters, key)
		}
	}
	l.swept = now
}
