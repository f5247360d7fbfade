// Package ratelimit implements the shared counter cache behind the
// policy-driven rate limiter.
//
// The cache owns the atomicity guarantee: CheckAndIncrement is a single
// atomic increment-and-read against a counter keyed by (key, windowStart),
// where windowStart is the wall clock truncated to the window length.
// Concurrent callers on the same key therefore can never jointly pass more
// than the configured maximum. A read-then-write implementation would
// lose updates under load and admit bursts over quota.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one counter check
type Result struct {
	// Allowed reports whether this request fits the window's quota
	Allowed bool
	// Remaining is how many further requests the window accepts
	Remaining int
	// ResetTime is when the current window ends and the counter resets
	ResetTime time.Time
}

// CounterCache is the collaborator holding per-key fixed-window counters
type CounterCache interface {
	CheckAndIncrement(ctx context.Context, key string, window time.Duration, max int) (Result, error)
}

// windowStart aligns now to the fixed window grid
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}
