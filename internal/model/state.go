// Package model defines the run-time data model shared by the executor and
// the state manager: the pipeline state, the execution trace, and the
// deep-copy helpers that keep snapshots independent.
package model

import "time"

// StageStatus is the scheduling state of a single stage during a run.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageReady     StageStatus = "ready"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	// StageSkipped is terminal and only reachable after a run-level abort
	// or cancellation.
	StageSkipped StageStatus = "skipped"
)

// TraceStatus is the status recorded in an execution trace entry.
type TraceStatus string

const (
	TraceRunning   TraceStatus = "running"
	TraceCompleted TraceStatus = "completed"
	TraceFailed    TraceStatus = "failed"
)

// ExecutionTraceEntry records one stage's execution window and outcome.
// Entries are appended in actual completion order, not declared order.
type ExecutionTraceEntry struct {
	NodeID    string
	NodeType  string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Status    TraceStatus
	Error     string
}

// RunMetadata holds the append-only trace and the run's start time.
type RunMetadata struct {
	Trace     []ExecutionTraceEntry
	StartTime time.Time
}

// PipelineState is the single canonical object mutated across a run. All
// mutation funnels through the state manager; stage handlers only ever see
// copies and return partial results.
type PipelineState struct {
	SignalID string
	// RawSignal is the opaque payload the run started with.
	RawSignal map[string]any
	// EnrichmentResults maps stage id to that stage's partial result.
	// Keys are unique per run; ResultOrder preserves insertion order.
	EnrichmentResults map[string]map[string]any
	ResultOrder       []string
	Metadata          RunMetadata
}

// NewPipelineState builds the initial state for a run.
func NewPipelineState(signalID string, raw map[string]any) *PipelineState {
	return &PipelineState{
		SignalID:          signalID,
		RawSignal:         CopyPayload(raw),
		EnrichmentResults: make(map[string]map[string]any),
		Metadata:          RunMetadata{StartTime: time.Now()},
	}
}

// SetResult records a stage's partial output, keeping insertion order.
// Writing the same id twice replaces the value without duplicating the key;
// the executor guarantees each stage folds in at most once per run.
func (s *PipelineState) SetResult(stageID string, out map[string]any) {
	if _, exists := s.EnrichmentResults[stageID]; !exists {
		s.ResultOrder = append(s.ResultOrder, stageID)
	}
	s.EnrichmentResults[stageID] = out
}

// AppendTrace adds one entry to the append-only trace.
func (s *PipelineState) AppendTrace(entry ExecutionTraceEntry) {
	s.Metadata.Trace = append(s.Metadata.Trace, entry)
}

// ExecutionMetrics is derived from the trace, never stored.
type ExecutionMetrics struct {
	// TotalTime is the sum of all recorded stage durations, not wall time.
	TotalTime     time.Duration
	NodesExecuted int
	NodesFailed   int
}

// MetricsFromTrace derives execution metrics from a trace.
func MetricsFromTrace(trace []ExecutionTraceEntry) ExecutionMetrics {
	var m ExecutionMetrics
	for _, e := range trace {
		m.TotalTime += e.Duration
		switch e.Status {
		case TraceCompleted:
			m.NodesExecuted++
		case TraceFailed:
			m.NodesFailed++
		}
	}
	return m
}
