package invoker

import (
	"context"
	"errors"
	"time"
)

// Retryable marks err as retryable. Handlers wrap transient failures
// (network hiccups, upstream 5xx) with RetryableErr so the invoker knows to
// retry them; everything unwrapped is treated as a permanent failure.
type Retryable struct{ Err error }

func (e *Retryable) Error() string { return e.Err.Error() }
func (e *Retryable) Unwrap() error { return e.Err }

// RetryableErr wraps err to mark it retryable.
func RetryableErr(err error) error { return &Retryable{Err: err} }

// IsRetryable reports whether err was marked with RetryableErr.
func IsRetryable(err error) bool { return errors.As(err, new(*Retryable)) }

// timeouter matches net-style errors that self-report as timeouts.
type timeouter interface{ Timeout() bool }

// shouldRetry classifies a failure. Retryable wrappers and timeout-like
// errors (I/O deadlines) are transient; validation and programming errors
// are not and propagate immediately without consuming retries.
func shouldRetry(err error) bool {
	if IsRetryable(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t timeouter
	if errors.As(err, &t) && t.Timeout() {
		return true
	}
	return false
}

// sleepWithContext pauses for d but returns early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
