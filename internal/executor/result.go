package executor

import (
	"fmt"

	"github.com/vk/signalgridgo/internal/model"
)

// RunResult is the successful outcome of a pipeline run. Failures lists
// non-critical stage failures that were tolerated along the way.
type RunResult struct {
	RunID    string
	Payload  map[string]any
	Trace    []model.ExecutionTraceEntry
	Metrics  model.ExecutionMetrics
	Failures []model.StageResult
}

// CriticalStageFailure is the rejection a run terminates with when a
// critical stage fails: the stage that sank the run, the underlying error,
// and the trace accumulated up to the abort.
type CriticalStageFailure struct {
	RunID         string
	FailedStageID string
	Err           error
	PartialTrace  []model.ExecutionTraceEntry
}

func (e *CriticalStageFailure) Error() string {
	return fmt.Sprintf("run aborted: critical stage '%s' failed: %v", e.FailedStageID, e.Err)
}

func (e *CriticalStageFailure) Unwrap() error { return e.Err }

// RunCancelled is the rejection a run terminates with when the caller's
// context ends before every stage reached a terminal outcome. A run never
// reports success with undecided stages.
type RunCancelled struct {
	RunID        string
	Err          error
	PartialTrace []model.ExecutionTraceEntry
}

func (e *RunCancelled) Error() string {
	return fmt.Sprintf("run cancelled before completion: %v", e.Err)
}

func (e *RunCancelled) Unwrap() error { return e.Err }
