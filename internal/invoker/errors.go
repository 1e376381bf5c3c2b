package invoker

import (
	"fmt"
	"time"
)

// InvocationError wraps a failure raised by a stage handler. Whether it is
// retried depends on the wrapped error's classification.
type InvocationError struct {
	StageID string
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("stage '%s' invocation failed: %v", e.StageID, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// TimeoutError marks an attempt that exceeded its advisory deadline. The
// underlying call is not interrupted; its eventual result is discarded.
type TimeoutError struct {
	StageID string
	Limit   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stage '%s' timed out after %s", e.StageID, e.Limit)
}

// Timeout reports this error as timeout-like for retry classification.
func (e *TimeoutError) Timeout() bool { return true }
