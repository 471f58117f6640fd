// Package retry runs calls to external services with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// MaxBackoff caps a single wait between attempts.
const MaxBackoff = 30 * time.Second

// Policy controls how often and how patiently an operation is retried.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is doubled on every retry.
	BaseDelay time.Duration
}

// Backoff returns the wait before the given retry attempt: BaseDelay * 2^attempt capped at
// MaxBackoff, with -25% to +25% jitter. Attempt 0 and non-positive delays wait nothing.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	backoff := MaxBackoff
	if attempt < 30 && baseDelay <= MaxBackoff/time.Duration(1<<uint(attempt)) {
		backoff = baseDelay * time.Duration(1<<uint(attempt))
	}
	half := int64(backoff) / 2
	if half <= 0 {
		return backoff
	}
	jitter := time.Duration(rand.Int63n(half)) - backoff/4
	return backoff + jitter
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns it unwrapped immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// ForStatus marks err permanent when status is a client error other than 408 or 429.
func ForStatus(err error, status int) error {
	if err == nil {
		return nil
	}
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return Permanent(err)
	}
	return err
}

// Do calls fn until it succeeds, returns a Permanent error, the retries are used up or ctx
// is done. The last error is returned wrapped with the attempt count.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(Backoff(p.BaseDelay, attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt, errors.Join(ctx.Err(), lastErr))
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", p.MaxRetries+1, lastErr)
}
