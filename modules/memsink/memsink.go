// Package memsink archives the enriched payload into the in-process run store.
package memsink

import (
	"context"
	"fmt"

	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/model"
	"github.com/vk/signalgridgo/internal/registry"
	"github.com/vk/signalgridgo/internal/runstore"
)

// Module implements the registry.Module interface for this package. It holds
// the store handle injected at composition time.
type Module struct {
	Store *runstore.Store
}

// OnRunMemSink is the handler for the 'memsink' internal stage.
func (m *Module) OnRunMemSink(ctx context.Context, ec registry.ExecContext, payload map[string]any) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)
	if m.Store == nil {
		return nil, fmt.Errorf("memsink store was not injected")
	}

	pipeline, _ := ec.Arguments["pipeline"].(string)
	err := m.Store.Put(ctx, runstore.Record{
		RunID:    ec.RunID,
		SignalID: ec.SignalID,
		Pipeline: pipeline,
		Payload:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to archive run '%s': %w", ec.RunID, err)
	}

	logger.Info("🗃️ Run archived in memory.", "run_id", ec.RunID)
	out := model.CopyPayload(payload)
	out["archived"] = true
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInternal("memsink", m.OnRunMemSink)
}
