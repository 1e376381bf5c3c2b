package invoker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/registry"
)

func pluginStage(id, key string) *config.Stage {
	return &config.Stage{ID: id, Kind: config.KindPlugin, Plugin: key}
}

func TestInvoke_RetryableErrorIsRetried(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var calls atomic.Int32
	r := registry.New()
	r.RegisterPlugin("flaky", func(_ context.Context, p map[string]any) (map[string]any, error) {
		if calls.Add(1) < 3 {
			return nil, RetryableErr(errors.New("upstream hiccup"))
		}
		return map[string]any{"ok": true}, nil
	})
	st := pluginStage("s1", "flaky")
	st.MaxRetries = 3
	st.RetryDelay = time.Millisecond

	// --- Act ---
	out, err := New(r).Invoke(context.Background(), st, map[string]any{}, registry.ExecContext{})

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, true, out["ok"])
	require.Equal(t, int32(3), calls.Load())
}

func TestInvoke_PermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := registry.New()
	r.RegisterPlugin("broken", func(_ context.Context, p map[string]any) (map[string]any, error) {
		calls.Add(1)
		return nil, errors.New("malformed input")
	})
	st := pluginStage("s1", "broken")
	st.MaxRetries = 5
	st.RetryDelay = time.Millisecond

	_, err := New(r).Invoke(context.Background(), st, map[string]any{}, registry.ExecContext{})

	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load(), "a permanent failure must not consume retries")
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	require.Equal(t, "s1", invErr.StageID)
}

func TestInvoke_RetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := registry.New()
	r.RegisterPlugin("always-flaky", func(_ context.Context, p map[string]any) (map[string]any, error) {
		calls.Add(1)
		return nil, RetryableErr(errors.New("still down"))
	})
	st := pluginStage("s1", "always-flaky")
	st.MaxRetries = 2
	st.RetryDelay = time.Millisecond

	_, err := New(r).Invoke(context.Background(), st, map[string]any{}, registry.ExecContext{})

	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load(), "first attempt plus MaxRetries")
	require.True(t, IsRetryable(err))
}

func TestInvoke_TimeoutFailsAttempt(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.RegisterPlugin("slow", func(ctx context.Context, p map[string]any) (map[string]any, error) {
		time.Sleep(500 * time.Millisecond)
		return map[string]any{"late": true}, nil
	})
	st := pluginStage("s1", "slow")
	st.Timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := New(r).Invoke(context.Background(), st, map[string]any{}, registry.ExecContext{})

	require.Error(t, err)
	var toErr *TimeoutError
	require.ErrorAs(t, err, &toErr)
	require.Less(t, time.Since(start), 400*time.Millisecond, "the invoker must not wait for the late handler")
}

func TestInvoke_TimeoutIsRetriedWithinBudget(t *testing.T) {
	t.Parallel()

	// First attempt sleeps past the deadline, second returns promptly.
	var calls atomic.Int32
	r := registry.New()
	r.RegisterPlugin("slow-once", func(ctx context.Context, p map[string]any) (map[string]any, error) {
		if calls.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		return map[string]any{"ok": true}, nil
	})
	st := pluginStage("s1", "slow-once")
	st.Timeout = 30 * time.Millisecond
	st.MaxRetries = 1
	st.RetryDelay = time.Millisecond

	out, err := New(r).Invoke(context.Background(), st, map[string]any{}, registry.ExecContext{})

	require.NoError(t, err)
	require.Equal(t, true, out["ok"])
}

func TestInvoke_PanicBecomesError(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.RegisterPlugin("bomb", func(_ context.Context, p map[string]any) (map[string]any, error) {
		panic("kaboom")
	})

	_, err := New(r).Invoke(context.Background(), pluginStage("s1", "bomb"), map[string]any{}, registry.ExecContext{})

	require.Error(t, err)
	require.Contains(t, err.Error(), "kaboom")
	require.Contains(t, err.Error(), "panic")
}

func TestInvoke_InternalHandlerReceivesExecContext(t *testing.T) {
	t.Parallel()

	r := registry.New()
	var seen registry.ExecContext
	r.RegisterInternal("archive", func(_ context.Context, ec registry.ExecContext, p map[string]any) (map[string]any, error) {
		seen = ec
		return p, nil
	})
	st := &config.Stage{ID: "archive", Kind: config.KindInternal, Arguments: map[string]any{"path": "/tmp/x"}}
	ec := registry.ExecContext{RunID: "run-1", SignalID: "sig-1", Arguments: st.Arguments}

	_, err := New(r).Invoke(context.Background(), st, map[string]any{}, ec)

	require.NoError(t, err)
	require.Equal(t, "run-1", seen.RunID)
	require.Equal(t, "sig-1", seen.SignalID)
	require.Equal(t, "/tmp/x", seen.Arguments["path"])
}

func TestInvoke_UnknownPluginFails(t *testing.T) {
	t.Parallel()

	_, err := New(registry.New()).Invoke(context.Background(), pluginStage("s1", "ghost"), nil, registry.ExecContext{})

	require.Error(t, err)
	require.Contains(t, err.Error(), "not registered")
}

func TestInvoke_CancelledContextStopsRetryLoop(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.RegisterPlugin("flaky", func(_ context.Context, p map[string]any) (map[string]any, error) {
		return nil, RetryableErr(errors.New("down"))
	})
	st := pluginStage("s1", "flaky")
	st.MaxRetries = 100
	st.RetryDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := New(r).Invoke(ctx, st, map[string]any{}, registry.ExecContext{})

	require.Error(t, err)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}
