package venue

import (
	"sync"
	"time"
)

// Scope separates the public (market data) and private (account/order) call
// budgets that venues meter independently.
type Scope string

const (
	ScopePublic  Scope = "public"
	ScopePrivate Scope = "private"
)

// RateLimiter is a per-adapter rolling window of recent call timestamps,
// one window per scope. Entries older than the window are pruned on each
// check, not on a timer. It is owned by a single adapter instance and never
// shared process-wide.
type RateLimiter struct {
	venue  string
	limits RateLimits

	mu    sync.Mutex
	calls map[Scope][]time.Time
	nowFn func() time.Time
}

func NewRateLimiter(venueName string, limits RateLimits) *RateLimiter {
	if limits.Window <= 0 {
		limits.Window = time.Minute
	}
	return &RateLimiter{
		venue:  venueName,
		limits: limits,
		calls:  make(map[Scope][]time.Time, 2),
		nowFn:  time.Now,
	}
}

// Limits returns the configured budget.
func (r *RateLimiter) Limits() RateLimits { return r.limits }

func (r *RateLimiter) limitFor(scope Scope) int {
	if scope == ScopePrivate {
		return r.limits.PrivatePerWindow
	}
	return r.limits.PublicPerWindow
}

// Allow records one call in scope, or returns a RateLimitError carrying the
// time until the oldest in-window entry expires.
func (r *RateLimiter) Allow(scope Scope) error {
	limit := r.limitFor(scope)
	if limit <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFn()
	cutoff := now.Add(-r.limits.Window)
	window := r.calls[scope]

	// Lazy prune: drop entries that fell out of the window.
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		retryAfter := kept[0].Add(r.limits.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		r.calls[scope] = kept
		return NewRateLimitError(r.venue, retryAfter)
	}

	r.calls[scope] = append(kept, now)
	return nil
}

// InWindow reports how many calls are currently counted against scope.
func (r *RateLimiter) InWindow(scope Scope) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.nowFn().Add(-r.limits.Window)
	n := 0
	for _, ts := range r.calls[scope] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
