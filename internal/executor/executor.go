// Package executor drives the orchestration state machine: it walks the
// stage graph layer by layer, dispatches every stage of a layer
// concurrently, merges join inputs, invokes handlers, and folds each result
// through the state manager. A critical failure flips the run to Aborted;
// non-critical failures are recorded and tolerated.
package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/graph"
	"github.com/vk/signalgridgo/internal/invoker"
	"github.com/vk/signalgridgo/internal/join"
	"github.com/vk/signalgridgo/internal/model"
	"github.com/vk/signalgridgo/internal/registry"
	"github.com/vk/signalgridgo/internal/state"
)

// Options tunes a run without changing its semantics.
type Options struct {
	// Workers caps concurrent stage invocations per layer as a resource
	// protection. Zero means no cap: the whole layer dispatches at once.
	Workers int
	// StrictCollisions makes a join key collision a hard failure.
	StrictCollisions bool
}

// Executor runs one pipeline graph against one state manager.
type Executor struct {
	graph   *graph.StageGraph
	invoker *invoker.Invoker
	manager *state.Manager
	opts    Options

	mu       sync.Mutex
	statuses map[string]model.StageStatus
	outputs  map[string]map[string]any
	failures []model.StageResult

	aborted     atomic.Bool
	failedStage string
	failErr     error
}

// New creates an executor over a built graph.
func New(g *graph.StageGraph, inv *invoker.Invoker, mgr *state.Manager, opts Options) *Executor {
	e := &Executor{
		graph:    g,
		invoker:  inv,
		manager:  mgr,
		opts:     opts,
		statuses: make(map[string]model.StageStatus, len(g.Stages())),
		outputs:  make(map[string]map[string]any),
	}
	for _, s := range g.Stages() {
		e.statuses[s.ID] = model.StagePending
	}
	return e
}

// Run executes the whole graph and returns either the final payload with
// its trace, or a CriticalStageFailure. The state manager must already hold
// the run's initial state.
func (e *Executor) Run(ctx context.Context) (*RunResult, error) {
	logger := ctxlog.FromContext(ctx)

	runID := uuid.New().String()
	initial := e.manager.CurrentState()
	base := initial.RawSignal
	runStart := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("🚀 Starting pipeline run.", "run_id", runID, "signal_id", initial.SignalID, "layers", len(e.graph.Layers()))

	var sem chan struct{}
	if e.opts.Workers > 0 {
		sem = make(chan struct{}, e.opts.Workers)
	}

	for i, layer := range e.graph.Layers() {
		if e.aborted.Load() || ctx.Err() != nil {
			break
		}
		logger.Debug("Dispatching layer.", "layer", i, "stages", len(layer))

		e.mu.Lock()
		for _, st := range layer {
			e.statuses[st.ID] = model.StageReady
		}
		e.mu.Unlock()

		var wg sync.WaitGroup
		for _, st := range layer {
			wg.Add(1)
			go func(st *config.Stage) {
				defer wg.Done()
				if sem != nil {
					sem <- struct{}{}
					defer func() { <-sem }()
				}
				e.runStage(runCtx, st, runID, initial.SignalID, runStart, base, cancel)
			}(st)
		}
		wg.Wait()
	}

	if e.aborted.Load() {
		e.skipRemaining(ctx)
		failure := &CriticalStageFailure{
			RunID:         runID,
			FailedStageID: e.failedStage,
			Err:           e.failErr,
			PartialTrace:  e.manager.TraceEntries(),
		}
		logger.Error("Pipeline run aborted.", "run_id", runID, "failed_stage", failure.FailedStageID, "error", failure.Err)
		return nil, failure
	}

	// External cancellation is not a success: stages cut off mid flight
	// never reached a terminal outcome of their own.
	if err := ctx.Err(); err != nil {
		e.skipRemaining(ctx)
		logger.Error("Pipeline run cancelled.", "run_id", runID, "error", err)
		return nil, &RunCancelled{
			RunID:        runID,
			Err:          err,
			PartialTrace: e.manager.TraceEntries(),
		}
	}

	payload, err := e.finalPayload(ctx, base)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	failures := append([]model.StageResult(nil), e.failures...)
	e.mu.Unlock()

	logger.Info("🏁 Pipeline run finished.", "run_id", runID, "non_critical_failures", len(failures))
	return &RunResult{
		RunID:    runID,
		Payload:  payload,
		Trace:    e.manager.TraceEntries(),
		Metrics:  e.manager.ExecutionMetrics(),
		Failures: failures,
	}, nil
}

// runStage executes one stage end to end: input assembly, invocation, and
// folding the outcome through the state manager.
func (e *Executor) runStage(ctx context.Context, st *config.Stage, runID, signalID string, runStart time.Time, base map[string]any, abort context.CancelFunc) {
	logger := ctxlog.FromContext(ctx).With("stage", st.ID)

	if e.aborted.Load() {
		return
	}

	input, err := e.stageInput(ctx, st, base)
	if err != nil {
		// Strict-collision failures surface like any other stage failure.
		e.recordFailure(ctx, st, time.Now(), time.Now(), err, abort)
		return
	}

	e.setStatus(st.ID, model.StageRunning)
	logger.Info("▶️ Stage starting.")

	ec := registry.ExecContext{
		RunID:     runID,
		SignalID:  signalID,
		StartedAt: runStart,
		Arguments: st.Arguments,
	}

	start := time.Now()
	out, err := e.invoker.Invoke(ctx, st, input, ec)
	end := time.Now()

	// Results that arrive after a run-level abort are discarded, never
	// folded into state.
	if e.aborted.Load() {
		logger.Debug("Discarding stage result after abort.")
		return
	}
	// A cancellation coming from the run context itself means the run is
	// being torn down; the run-level outcome is decided in Run, not here.
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return
	}

	if err != nil {
		logger.Warn("❌ Stage failed.", "critical", st.Critical, "duration", end.Sub(start), "error", err)
		e.recordFailure(ctx, st, start, end, err, abort)
		return
	}

	e.mu.Lock()
	e.statuses[st.ID] = model.StageCompleted
	e.outputs[st.ID] = out
	e.mu.Unlock()

	logger.Info("✅ Stage completed.", "duration", end.Sub(start))

	entry := model.ExecutionTraceEntry{
		NodeID:    st.ID,
		NodeType:  string(st.Kind),
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Status:    model.TraceCompleted,
	}
	e.fold(ctx, func(s *model.PipelineState) (*model.PipelineState, error) {
		s.SetResult(st.ID, out)
		s.AppendTrace(entry)
		return s, nil
	})
}

// stageInput assembles the payload a stage runs on: a copy of the base
// payload with every completed parent's output merged in declared order.
// Failed (non-critical) parents are omitted, so their keys never appear.
func (e *Executor) stageInput(ctx context.Context, st *config.Stage, base map[string]any) (map[string]any, error) {
	preds := e.graph.PredecessorsOf(st.ID)
	parents := make([]join.Partial, 0, len(preds))

	e.mu.Lock()
	for _, p := range preds {
		if e.statuses[p.ID] == model.StageCompleted {
			parents = append(parents, join.Partial{StageID: p.ID, Output: e.outputs[p.ID]})
		}
	}
	e.mu.Unlock()

	return join.Merge(ctx, base, parents, e.opts.StrictCollisions)
}

// recordFailure marks a stage failed, folds its trace entry, and — for a
// critical stage — flips the run to aborted and cancels outstanding work.
// The trace fold happens before the abort flag is raised so the failing
// stage's own entry always makes it into the partial trace.
func (e *Executor) recordFailure(ctx context.Context, st *config.Stage, start, end time.Time, stageErr error, abort context.CancelFunc) {
	e.mu.Lock()
	e.statuses[st.ID] = model.StageFailed
	if !st.Critical {
		e.failures = append(e.failures, model.StageResult{
			StageID:  st.ID,
			Kind:     string(st.Kind),
			Critical: st.Critical,
			Status:   model.TraceFailed,
			Duration: end.Sub(start),
			Err:      stageErr,
		})
	}
	e.mu.Unlock()

	entry := model.ExecutionTraceEntry{
		NodeID:    st.ID,
		NodeType:  string(st.Kind),
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Status:    model.TraceFailed,
		Error:     stageErr.Error(),
	}
	e.fold(ctx, func(s *model.PipelineState) (*model.PipelineState, error) {
		s.AppendTrace(entry)
		return s, nil
	})

	if st.Critical {
		if e.aborted.CompareAndSwap(false, true) {
			e.failedStage = st.ID
			e.failErr = stageErr
			abort()
		}
	}
}

// fold applies one state update, gated behind the run-still-active check.
func (e *Executor) fold(ctx context.Context, updater state.Updater) {
	if e.aborted.Load() {
		return
	}
	if err := e.manager.UpdateState(ctx, updater); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, state.ErrClosed) {
		ctxlog.FromContext(ctx).Error("State update failed.", "error", err)
	}
}

// skipRemaining transitions every stage without a terminal record to
// Skipped. Running stages land here too: their in-flight work was
// discarded, so no completed or failed entry exists for them.
func (e *Executor) skipRemaining(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, status := range e.statuses {
		switch status {
		case model.StagePending, model.StageReady, model.StageRunning:
			e.statuses[id] = model.StageSkipped
			logger.Debug("Stage skipped after abort.", "stage", id)
		}
	}
}

// finalPayload merges the sink stages' outputs, in declared order, onto the
// base payload. With a single completed sink this is that sink's output
// threaded over the raw signal.
func (e *Executor) finalPayload(ctx context.Context, base map[string]any) (map[string]any, error) {
	leaves := e.graph.Leaves()
	parents := make([]join.Partial, 0, len(leaves))

	e.mu.Lock()
	for _, l := range leaves {
		if e.statuses[l.ID] == model.StageCompleted {
			parents = append(parents, join.Partial{StageID: l.ID, Output: e.outputs[l.ID]})
		}
	}
	e.mu.Unlock()

	return join.Merge(ctx, base, parents, false)
}

// setStatus updates one stage's scheduling status.
func (e *Executor) setStatus(id string, s model.StageStatus) {
	e.mu.Lock()
	e.statuses[id] = s
	e.mu.Unlock()
}

// StageStatuses returns a copy of every stage's scheduling status. Exposed
// for callers inspecting a finished run (and for tests).
func (e *Executor) StageStatuses() map[string]model.StageStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]model.StageStatus, len(e.statuses))
	for k, v := range e.statuses {
		out[k] = v
	}
	return out
}
