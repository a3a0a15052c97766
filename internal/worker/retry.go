package worker

import (
	"math"
	"time"
)

// RetryPolicy spaces ledger retries exponentially between InitialDelay and
// MaxDelay and gives up after MaxRetries attempts.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Exhausted reports whether a task that failed attempt times is dead.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return r.MaxRetries > 0 && attempt >= r.MaxRetries
}

// NextDelay is the wait before the given 1-based attempt.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}
	attempt = max(attempt, 1)

	d := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	switch {
	case d <= 0:
		return time.Second
	case r.MaxDelay > 0 && d > r.MaxDelay:
		return r.MaxDelay
	default:
		return d
	}
}
