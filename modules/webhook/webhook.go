// Package webhook posts the enriched payload to an external HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/invoker"
	"github.com/vk/signalgridgo/internal/model"
	"github.com/vk/signalgridgo/internal/registry"
)

// Module implements the registry.Module interface for this package. A custom
// Client can be injected for tests; otherwise a default client is used.
type Module struct {
	Client *http.Client
}

// OnRunWebhook is the handler for the 'webhook' internal stage. Transport
// errors and 5xx responses are marked retryable so the stage's retry policy
// applies; 4xx responses fail permanently.
func (m *Module) OnRunWebhook(ctx context.Context, ec registry.ExecContext, payload map[string]any) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)

	url, _ := ec.Arguments["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("webhook requires a 'url' argument")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	logger.Info("📤 Delivering payload to webhook.", "url", url)
	resp, err := client.Do(req)
	if err != nil {
		return nil, invoker.RetryableErr(fmt.Errorf("failed to deliver webhook: %w", err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return nil, invoker.RetryableErr(fmt.Errorf("webhook endpoint returned %s", resp.Status))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("webhook endpoint rejected payload with %s", resp.Status)
	}

	logger.Info("✅ Webhook delivered.", "status", resp.Status)
	out := model.CopyPayload(payload)
	out["delivered"] = true
	out["status_code"] = resp.StatusCode
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInternal("webhook", m.OnRunWebhook)
}
