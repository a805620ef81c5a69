package cache

import (
	"context"
	"fmt"
	"time"
)

// Retry is the shared retry policy for cache writes: a small fixed attempt
// count with exponential back-off. Cache mutations are ordering-sensitive
// (a dropped flag clear silently swallows a state transition), so callers
// retry rather than shrug.
type Retry struct {
	Attempts  int
	BaseDelay time.Duration
	Log       Logger
}

// DefaultRetry is the policy used for subscription sync and eviction.
func DefaultRetry(log Logger) Retry {
	return Retry{Attempts: 3, BaseDelay: 100 * time.Millisecond, Log: log}
}

// Do executes fn with exponential back-off retry logic.
func (r Retry) Do(ctx context.Context, name string, fn func() error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := r.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			if r.Log != nil {
				r.Log.Warnf("%s failed (attempt %d/%d): %v, retrying in %v",
					name, attempt, attempts, lastErr, delay)
			}
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
