// Package retry holds the backoff used when dialing infrastructure at
// startup. Scoring work itself is never retried.
package retry

import (
	"context"
	"time"
)

const maxBackoff = 30 * time.Second

// ExponentialBackoff returns delay based on attempt number.
// The delay doubles with each attempt: base * 2^attempt, capped at 30s.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return maxBackoff
	}
	d := base * (1 << attempt)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

// Do calls fn until it succeeds, attempts are exhausted or ctx is done.
// The last error is returned.
func Do(ctx context.Context, attempts int, base time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(ExponentialBackoff(attempt, base))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
