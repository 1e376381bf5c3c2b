// Package sqlitesink persists the enriched payload into a SQLite database.
package sqlitesink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/model"
	"github.com/vk/signalgridgo/internal/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS signal_runs (
	run_id      TEXT PRIMARY KEY,
	signal_id   TEXT NOT NULL,
	payload     TEXT NOT NULL,
	archived_at TEXT NOT NULL
);`

// Module implements the registry.Module interface for this package.
type Module struct{}

// OnRunSQLiteSink is the handler for the 'sqlitesink' internal stage. The
// database is opened per invocation so a retry starts from a clean handle.
func OnRunSQLiteSink(ctx context.Context, ec registry.ExecContext, payload map[string]any) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)

	path, _ := ec.Arguments["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("sqlitesink requires a 'path' argument")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure sqlite schema: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for run '%s': %w", ec.RunID, err)
	}

	archivedAt := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO signal_runs (run_id, signal_id, payload, archived_at) VALUES (?, ?, ?, ?)`,
		ec.RunID, ec.SignalID, string(body), archivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to persist run '%s': %w", ec.RunID, err)
	}

	logger.Info("💾 Run persisted to sqlite.", "run_id", ec.RunID, "path", path)
	out := model.CopyPayload(payload)
	out["persisted"] = true
	out["db_path"] = path
	return out, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInternal("sqlitesink", OnRunSQLiteSink)
}
