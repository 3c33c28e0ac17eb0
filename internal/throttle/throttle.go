// Package throttle limits how often a key (a client IP) may hit a route
// within a fixed window.
package throttle

import (
	"context"
	"time"
)

// Result describes the outcome of a single attempt.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter records an attempt for key and reports whether it is allowed.
// A denied attempt is not counted. Implementations are safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}
