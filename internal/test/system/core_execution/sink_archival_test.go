package system

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/vk/signalgridgo/internal/testutil"
)

// Test for: The built-in memsink stage archives the enriched run in the
// app's run store.
func TestCoreExecution_MemSinkArchivesRun(t *testing.T) {
	// --- Arrange ---
	// No test modules are passed, so the app wires its core modules and the
	// pipeline can only reference built-in internal stages.
	hcl := `
		pipeline "archive-flow" {}

		stage "ingress" {
			kind     = "internal"
			critical = true
		}
		stage "memsink" {
			kind       = "internal"
			depends_on = ["ingress"]

			arguments {
				pipeline = "archive-flow"
			}
		}
	`

	// --- Act ---
	h := testutil.RunPipelineTest(t, map[string]string{"main.hcl": hcl})
	require.NoError(t, h.Err)

	// --- Assert ---
	store := h.App.RunStore()
	require.Equal(t, 1, store.Len())

	rec, ok := store.Get(context.Background(), h.Result.RunID)
	require.True(t, ok, "the run must be archived under its run id")
	require.Equal(t, "sig-test", rec.SignalID)
	require.Equal(t, "archive-flow", rec.Pipeline)
	require.Equal(t, "sig-test", rec.Payload["signal_id"], "the archived payload carries the ingress enrichment")
	require.Equal(t, true, h.Result.Payload["archived"])
}

// Test for: The sqlitesink stage persists the run into a SQLite file.
func TestCoreExecution_SQLiteSinkPersistsRun(t *testing.T) {
	// --- Arrange ---
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	hcl := `
		stage "ingress" {
			kind     = "internal"
			critical = true
		}
		stage "sqlitesink" {
			kind       = "internal"
			depends_on = ["ingress"]

			arguments {
				path = "` + dbPath + `"
			}
		}
	`

	// --- Act ---
	h := testutil.RunPipelineTest(t, map[string]string{"main.hcl": hcl})
	require.NoError(t, h.Err)

	// --- Assert ---
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var signalID, payload string
	err = db.QueryRow(`SELECT signal_id, payload FROM signal_runs WHERE run_id = ?`, h.Result.RunID).
		Scan(&signalID, &payload)
	require.NoError(t, err)
	require.Equal(t, "sig-test", signalID)
	require.Contains(t, payload, `"ingested_at"`)
	require.Equal(t, true, h.Result.Payload["persisted"])
}
