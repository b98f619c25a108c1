package jolpica

import (
	"sync"
	"time"
)

// RateBudget tracks outbound requests against a trailing-window cap. It is a
// deliberate approximation: instead of a precise sliding window the counter
// resets once the gap since the last recorded request exceeds the window,
// which may overcount slightly but never undercounts.
type RateBudget struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	lastRequest time.Time
}

// NewRateBudget creates a budget allowing limit requests per trailing window.
func NewRateBudget(limit int, window time.Duration) *RateBudget {
	return &RateBudget{
		limit:  limit,
		window: window,
	}
}

// Allow reports whether another request fits the budget at the given time.
// It does not record the request; callers record after the network call so
// that rejected attempts never consume budget.
func (b *RateBudget) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeReset(now)
	return b.count < b.limit
}

// Record counts a completed request against the budget, regardless of the
// HTTP status it produced.
func (b *RateBudget) Record(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeReset(now)
	b.count++
	b.lastRequest = now
}

// Count returns the number of requests currently recorded in the window.
func (b *RateBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Reset clears the budget. Intended for tests and operator tooling.
func (b *RateBudget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count = 0
	b.lastRequest = time.Time{}
}

// maybeReset zeroes the counter when the last recorded request is older than
// the window. Caller must hold the mutex.
func (b *RateBudget) maybeReset(now time.Time) {
	if !b.lastRequest.IsZero() && now.Sub(b.lastRequest) > b.window {
		b.count = 0
	}
}
