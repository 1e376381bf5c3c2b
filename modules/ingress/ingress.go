// Package ingress normalizes a raw signal at the head of a pipeline.
package ingress

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/model"
	"github.com/vk/signalgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnRunIngress is the handler for the 'ingress' internal stage. It stamps the
// signal with run identity and receipt time, and applies default fields from
// the stage arguments for keys the raw signal did not carry.
func OnRunIngress(ctx context.Context, ec registry.ExecContext, payload map[string]any) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)

	if len(payload) == 0 {
		return nil, fmt.Errorf("ingress received an empty signal payload")
	}

	// Handlers return the full transformed payload so enrichment threads
	// forward through the chain.
	out := model.CopyPayload(payload)
	out["signal_id"] = ec.SignalID
	out["run_id"] = ec.RunID
	out["ingested_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	if defaults, ok := ec.Arguments["defaults"].(map[string]any); ok {
		applied := 0
		for k, v := range defaults {
			if _, present := payload[k]; !present {
				out[k] = v
				applied++
			}
		}
		if applied > 0 {
			logger.Debug("Applied ingress defaults.", "count", applied)
		}
	}

	logger.Info("📡 Signal admitted.", "signal_id", ec.SignalID)
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInternal("ingress", OnRunIngress)
}
