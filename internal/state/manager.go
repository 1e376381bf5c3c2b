// Package state owns the canonical pipeline state for a run. Every mutation
// funnels through a single-consumer request queue, so updates are genuinely
// serialized in arrival order — not merely behind an API that looks locked.
// The manager keeps a bounded history of independent snapshots supporting
// rollback and checkpointing, and exposes the execution trace.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/signalgridgo/internal/model"
)

// DefaultHistorySize bounds the snapshot history unless configured otherwise.
const DefaultHistorySize = 100

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("state manager is closed")

// Updater receives the current state and returns the next one. If it
// returns an error, no mutation occurs and the error propagates to the
// UpdateState caller.
type Updater func(current *model.PipelineState) (*model.PipelineState, error)

// Manager serializes all access to one canonical PipelineState.
//
// Internally it runs a single actor goroutine that owns the state and the
// history outright; public methods enqueue closures and wait. Blocked
// senders on an unbuffered channel are served in arrival order, which gives
// the strict FIFO the trace and history ordering guarantees rely on.
type Manager struct {
	requests chan func()
	quit     chan struct{}

	// Owned exclusively by the actor goroutine.
	current  *model.PipelineState
	history  []*model.PipelineState
	capacity int
}

// NewManager creates a manager around the initial state and starts its
// actor. One snapshot of the initial state is pushed into history.
// historySize <= 0 selects DefaultHistorySize.
func NewManager(initial *model.PipelineState, historySize int) *Manager {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	cp := initial.DeepCopy()
	m := &Manager{
		requests: make(chan func()),
		quit:     make(chan struct{}),
		current:  cp,
		history:  []*model.PipelineState{cp.DeepCopy()},
		capacity: historySize,
	}
	go m.loop()
	return m
}

// Close stops the actor. Pending and later calls fail with ErrClosed.
// Safe to call more than once.
func (m *Manager) Close() {
	select {
	case <-m.quit:
	default:
		close(m.quit)
	}
}

func (m *Manager) loop() {
	for {
		select {
		case <-m.quit:
			return
		case req := <-m.requests:
			req()
		}
	}
}

// do enqueues fn and waits for the actor to run it.
func (m *Manager) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case m.requests <- wrapped:
	case <-m.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-m.quit:
		return ErrClosed
	}
}

// UpdateState applies the updater atomically: the updater sees a copy of
// the current state; on success the result is deep-copied, becomes the new
// canonical state, and one snapshot is appended to history. On updater
// error nothing changes. At most one updater runs at a time, in call
// arrival order.
func (m *Manager) UpdateState(ctx context.Context, updater Updater) error {
	var uerr error
	err := m.do(ctx, func() {
		next, err := updater(m.current.DeepCopy())
		if err != nil {
			uerr = err
			return
		}
		if next == nil {
			uerr = errors.New("updater returned nil state")
			return
		}
		cp := next.DeepCopy()
		m.current = cp
		m.appendHistory(cp.DeepCopy())
	})
	if err != nil {
		return err
	}
	return uerr
}

// appendHistory stores one snapshot, evicting the oldest entry when the
// bounded capacity is reached.
func (m *Manager) appendHistory(snap *model.PipelineState) {
	if len(m.history) >= m.capacity {
		evicted := len(m.history) - m.capacity + 1
		m.history = append([]*model.PipelineState{}, m.history[evicted:]...)
	}
	m.history = append(m.history, snap)
}

// RollbackState pops the most recent history entry and restores the new
// tail as current state. It is a no-op returning false when history holds
// one entry or fewer.
func (m *Manager) RollbackState() bool {
	ok := false
	_ = m.do(context.Background(), func() {
		if len(m.history) <= 1 {
			return
		}
		m.history = m.history[:len(m.history)-1]
		m.current = m.history[len(m.history)-1].DeepCopy()
		ok = true
	})
	return ok
}

// CreateCheckpoint appends the current state to history and returns its
// index. The index is a position in the current history; earlier FIFO
// evictions shift positions, so checkpoints are meant for use within the
// run that created them.
func (m *Manager) CreateCheckpoint() int {
	idx := -1
	_ = m.do(context.Background(), func() {
		m.appendHistory(m.current.DeepCopy())
		idx = len(m.history) - 1
	})
	return idx
}

// RollbackToCheckpoint restores the state at index and truncates all
// history after it. Out-of-range indices are rejected.
func (m *Manager) RollbackToCheckpoint(index int) error {
	var rerr error
	err := m.do(context.Background(), func() {
		if index < 0 || index >= len(m.history) {
			rerr = fmt.Errorf("checkpoint index %d out of range (history length %d)", index, len(m.history))
			return
		}
		m.current = m.history[index].DeepCopy()
		m.history = m.history[:index+1]
	})
	if err != nil {
		return err
	}
	return rerr
}

// ResetState restores the very first snapshot and discards all other history.
func (m *Manager) ResetState() {
	_ = m.do(context.Background(), func() {
		m.current = m.history[0].DeepCopy()
		m.history = m.history[:1]
	})
}

// CurrentState returns an independent copy of the canonical state.
func (m *Manager) CurrentState() *model.PipelineState {
	var cp *model.PipelineState
	_ = m.do(context.Background(), func() {
		cp = m.current.DeepCopy()
	})
	return cp
}

// StateHistory returns independent copies of every history entry, oldest
// first. Mutating the returned states never affects manager-held state.
func (m *Manager) StateHistory() []*model.PipelineState {
	var out []*model.PipelineState
	_ = m.do(context.Background(), func() {
		out = make([]*model.PipelineState, len(m.history))
		for i, s := range m.history {
			out[i] = s.DeepCopy()
		}
	})
	return out
}

// TraceEntries returns a copy of the execution trace in append order.
func (m *Manager) TraceEntries() []model.ExecutionTraceEntry {
	var out []model.ExecutionTraceEntry
	_ = m.do(context.Background(), func() {
		out = make([]model.ExecutionTraceEntry, len(m.current.Metadata.Trace))
		copy(out, m.current.Metadata.Trace)
	})
	return out
}

// ExecutionMetrics derives run metrics from the trace.
func (m *Manager) ExecutionMetrics() model.ExecutionMetrics {
	var metrics model.ExecutionMetrics
	_ = m.do(context.Background(), func() {
		metrics = model.MetricsFromTrace(m.current.Metadata.Trace)
	})
	return metrics
}
