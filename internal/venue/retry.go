package venue

import (
	"context"
	"time"
)

const retryBaseDelay = 200 * time.Millisecond

// Retry runs op up to maxAttempts times, backing off between attempts.
// Only transient errors (connection, rate limit) are retried; a rate-limit
// error's retry-after hint overrides the exponential delay. The last error
// is returned when attempts are exhausted.
func Retry(ctx context.Context, maxAttempts int, op func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == maxAttempts {
			return lastErr
		}
		wait := delay
		if ra, ok := RetryAfterOf(lastErr); ok && ra > 0 {
			wait = ra
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}
