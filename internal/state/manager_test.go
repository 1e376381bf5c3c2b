package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/signalgridgo/internal/model"
)

func newTestManager(t *testing.T, historySize int) *Manager {
	t.Helper()
	m := NewManager(model.NewPipelineState("sig-1", map[string]any{"counter": 0}), historySize)
	t.Cleanup(m.Close)
	return m
}

func TestUpdateState_AppliesAndSnapshots(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)

	err := m.UpdateState(context.Background(), func(s *model.PipelineState) (*model.PipelineState, error) {
		s.SetResult("enrich", map[string]any{"score": 0.7})
		return s, nil
	})

	require.NoError(t, err)
	require.Equal(t, 0.7, m.CurrentState().EnrichmentResults["enrich"]["score"])
	require.Len(t, m.StateHistory(), 2, "initial snapshot plus one update")
}

func TestUpdateState_ErrorLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)
	boom := errors.New("boom")

	err := m.UpdateState(context.Background(), func(s *model.PipelineState) (*model.PipelineState, error) {
		s.SetResult("poison", map[string]any{})
		return nil, boom
	})

	require.ErrorIs(t, err, boom)
	require.Empty(t, m.CurrentState().EnrichmentResults)
	require.Len(t, m.StateHistory(), 1)
}

func TestUpdateState_ConcurrentUpdatesAllApply(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	const n = 64
	m := newTestManager(t, n+1)

	// --- Act ---
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			err := m.UpdateState(context.Background(), func(s *model.PipelineState) (*model.PipelineState, error) {
				s.RawSignal["counter"] = s.RawSignal["counter"].(int) + 1
				return s, nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// --- Assert ---
	// Serialized read-modify-write: no increment may be lost.
	require.Equal(t, n, m.CurrentState().RawSignal["counter"])
	require.Len(t, m.StateHistory(), n+1)
}

func TestHistory_EvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 3)

	for i := 1; i <= 5; i++ {
		v := i
		require.NoError(t, m.UpdateState(context.Background(), func(s *model.PipelineState) (*model.PipelineState, error) {
			s.RawSignal["counter"] = v
			return s, nil
		}))
	}

	history := m.StateHistory()
	require.Len(t, history, 3)
	// Oldest snapshots fell off; the newest survives at the tail.
	require.Equal(t, 3, history[0].RawSignal["counter"])
	require.Equal(t, 5, history[2].RawSignal["counter"])
}

func TestRollbackState(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)

	require.False(t, m.RollbackState(), "rollback on a fresh manager is a no-op")

	require.NoError(t, m.UpdateState(context.Background(), func(s *model.PipelineState) (*model.PipelineState, error) {
		s.RawSignal["counter"] = 1
		return s, nil
	}))

	require.True(t, m.RollbackState())
	require.Equal(t, 0, m.CurrentState().RawSignal["counter"])
	require.False(t, m.RollbackState(), "only the initial snapshot remains")
}

func TestCheckpointAndRollbackToCheckpoint(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 20)

	require.NoError(t, m.UpdateState(context.Background(), func(s *model.PipelineState) (*model.PipelineState, error) {
		s.RawSignal["counter"] = 1
		return s, nil
	}))
	cp := m.CreateCheckpoint()
	require.GreaterOrEqual(t, cp, 0)

	for i := 2; i <= 4; i++ {
		v := i
		require.NoError(t, m.UpdateState(context.Background(), func(s *model.PipelineState) (*model.PipelineState, error) {
			s.RawSignal["counter"] = v
			return s, nil
		}))
	}

	require.NoError(t, m.RollbackToCheckpoint(cp))
	require.Equal(t, 1, m.CurrentState().RawSignal["counter"])
	require.Len(t, m.StateHistory(), cp+1, "history after the checkpoint is truncated")

	require.Error(t, m.RollbackToCheckpoint(99))
	require.Error(t, m.RollbackToCheckpoint(-1))
}

func TestResetState(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)

	for i := 1; i <= 3; i++ {
		v := i
		require.NoError(t, m.UpdateState(context.Background(), func(s *model.PipelineState) (*model.PipelineState, error) {
			s.RawSignal["counter"] = v
			return s, nil
		}))
	}

	m.ResetState()

	require.Equal(t, 0, m.CurrentState().RawSignal["counter"])
	require.Len(t, m.StateHistory(), 1)
}

func TestClose_RejectsFurtherUpdates(t *testing.T) {
	t.Parallel()

	m := NewManager(model.NewPipelineState("sig-1", nil), 10)
	m.Close()
	m.Close() // idempotent

	err := m.UpdateState(context.Background(), func(s *model.PipelineState) (*model.PipelineState, error) {
		return s, nil
	})
	require.ErrorIs(t, err, ErrClosed)
}

func TestCurrentState_ReturnsIsolatedCopy(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, 10)

	cp := m.CurrentState()
	cp.RawSignal["counter"] = 999

	require.Equal(t, 0, m.CurrentState().RawSignal["counter"])
}
