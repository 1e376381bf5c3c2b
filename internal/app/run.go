package app

import (
	"context"
	"fmt"

	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/executor"
	"github.com/vk/signalgridgo/internal/graph"
	"github.com/vk/signalgridgo/internal/invoker"
	"github.com/vk/signalgridgo/internal/model"
	"github.com/vk/signalgridgo/internal/state"
)

// Run pushes one signal through the configured pipeline and returns the run
// result. Each call gets its own state manager, so concurrent Run calls on
// the same App do not share mutable state.
func (a *App) Run(ctx context.Context, appConfig *AppConfig, signalID string, rawSignal map[string]any) (*executor.RunResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "signal_id", signalID)

	if appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(appConfig.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	a.logger.Debug("Building stage graph from config model...")
	g, err := graph.Build(ctx, a.config)
	if err != nil {
		return nil, fmt.Errorf("failed to build stage graph: %w", err)
	}
	a.logger.Debug("Stage graph built.", "stage_count", len(g.Stages()), "layers", len(g.Layers()))

	mgr := state.NewManager(model.NewPipelineState(signalID, rawSignal), a.historySize(appConfig))
	defer mgr.Close()

	exec := executor.New(g, invoker.New(a.registry), mgr, executor.Options{
		Workers:          appConfig.WorkerCount,
		StrictCollisions: a.strictCollisions(appConfig),
	})

	a.logger.Info("🚀 Starting concurrent execution...", "signal_id", signalID)
	result, err := exec.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Execution finished.", "run_id", result.RunID, "stages_run", len(result.Trace))

	return result, nil
}
