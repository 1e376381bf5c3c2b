// Package invoker provides the uniform call contract over the two stage
// kinds. It resolves the handler, applies the stage's retry and timeout
// policy, and isolates failures — including panics — from the executor.
package invoker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/registry"
)

// Invoker executes stage handlers under the stage's retry/timeout policy.
type Invoker struct {
	registry *registry.Registry
}

// New creates an invoker backed by the given handler registry.
func New(r *registry.Registry) *Invoker {
	return &Invoker{registry: r}
}

// Invoke runs the stage's handler on the payload. Retryable failures are
// retried up to MaxRetries with a fixed RetryDelay between attempts;
// non-retryable failures propagate immediately. A set Timeout bounds each
// attempt as a soft deadline: the attempt fails but the underlying call is
// not interrupted, and a late result is discarded.
func (v *Invoker) Invoke(ctx context.Context, stage *config.Stage, payload map[string]any, ec registry.ExecContext) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx).With("stage", stage.ID)

	call, err := v.resolve(stage, ec)
	if err != nil {
		return nil, err
	}

	attempts := stage.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out, attemptErr := v.attempt(ctx, stage, call, payload)
		if attemptErr == nil {
			return out, nil
		}
		lastErr = attemptErr

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !shouldRetry(attemptErr) {
			logger.Debug("Stage failed with non-retryable error.", "attempt", attempt, "error", attemptErr)
			return nil, attemptErr
		}
		if attempt < attempts {
			logger.Warn("Stage attempt failed, retrying.", "attempt", attempt, "of", attempts, "delay", stage.RetryDelay, "error", attemptErr)
			sleepWithContext(ctx, stage.RetryDelay)
		}
	}

	logger.Debug("Stage exhausted retries.", "attempts", attempts, "error", lastErr)
	return nil, lastErr
}

// callFunc is the resolved, kind-erased handler call.
type callFunc func(ctx context.Context, payload map[string]any) (map[string]any, error)

// resolve maps the stage to its registered handler. Registration is checked
// at startup, so a miss here means the registry was swapped out from under
// the run.
func (v *Invoker) resolve(stage *config.Stage, ec registry.ExecContext) (callFunc, error) {
	switch stage.Kind {
	case config.KindPlugin:
		h, ok := v.registry.Plugin(stage.Plugin)
		if !ok {
			return nil, &InvocationError{StageID: stage.ID, Err: fmt.Errorf("plugin '%s' not registered", stage.Plugin)}
		}
		return callFunc(h), nil
	case config.KindInternal:
		h, ok := v.registry.Internal(stage.ID)
		if !ok {
			return nil, &InvocationError{StageID: stage.ID, Err: fmt.Errorf("no internal handler for stage")}
		}
		return func(ctx context.Context, payload map[string]any) (map[string]any, error) {
			return h(ctx, ec, payload)
		}, nil
	default:
		return nil, &InvocationError{StageID: stage.ID, Err: fmt.Errorf("unknown stage kind '%s'", stage.Kind)}
	}
}

// attemptResult passes a handler outcome through the done channel.
type attemptResult struct {
	out map[string]any
	err error
}

// attempt runs one handler call, bounded by the stage timeout when set.
// The handler runs in its own goroutine; on timeout the goroutine keeps
// running but writes into a buffered channel nobody reads again.
func (v *Invoker) attempt(ctx context.Context, stage *config.Stage, call callFunc, payload map[string]any) (map[string]any, error) {
	done := make(chan attemptResult, 1)

	go func() {
		out, err := safeCall(ctx, stage.ID, call, payload)
		done <- attemptResult{out: out, err: err}
	}()

	if stage.Timeout <= 0 {
		select {
		case res := <-done:
			return res.out, wrapHandlerErr(stage.ID, res.err)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	timer := time.NewTimer(stage.Timeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.out, wrapHandlerErr(stage.ID, res.err)
	case <-timer.C:
		return nil, &TimeoutError{StageID: stage.ID, Limit: stage.Timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// safeCall converts handler panics into errors so one misbehaving handler
// cannot take down the whole run.
func safeCall(ctx context.Context, stageID string, call callFunc, payload map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic in stage '%s': %v\n%s", stageID, r, debug.Stack())
			out = nil
		}
	}()
	return call(ctx, payload)
}

// wrapHandlerErr tags handler failures with the stage id. Errors already
// classified (Retryable, timeouts) keep their classification through Unwrap.
func wrapHandlerErr(stageID string, err error) error {
	if err == nil {
		return nil
	}
	return &InvocationError{StageID: stageID, Err: err}
}
