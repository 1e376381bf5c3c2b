package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	opts, shouldExit, err := Parse([]string{"pipelines/"}, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Equal(t, "pipelines/", opts.App.PipelinePath)
	require.Equal(t, "hcl", opts.ConfigFormat)
	require.Equal(t, "json", opts.App.LogFormat)
	require.Equal(t, "info", opts.App.LogLevel)
	require.Equal(t, 10, opts.App.WorkerCount)
	require.Equal(t, 0, opts.App.HistorySize)
	require.False(t, opts.App.StrictCollisions)
}

func TestParse_AllFlags(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	args := []string{
		"-pipeline", "p.hcl",
		"-signal", "sig.json",
		"-signal-id", "sig-42",
		"-config-format", "yaml",
		"-log-format", "text",
		"-log-level", "debug",
		"-workers", "3",
		"-history-size", "7",
		"-strict-collisions",
		"-healthcheck-port", "8099",
	}

	opts, shouldExit, err := Parse(args, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Equal(t, "p.hcl", opts.App.PipelinePath)
	require.Equal(t, "sig.json", opts.SignalPath)
	require.Equal(t, "sig-42", opts.SignalID)
	require.Equal(t, "yaml", opts.ConfigFormat)
	require.Equal(t, "text", opts.App.LogFormat)
	require.Equal(t, "debug", opts.App.LogLevel)
	require.Equal(t, 3, opts.App.WorkerCount)
	require.Equal(t, 7, opts.App.HistorySize)
	require.True(t, opts.App.StrictCollisions)
	require.Equal(t, 8099, opts.App.HealthcheckPort)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	_, shouldExit, err := Parse([]string{}, out)

	require.NoError(t, err)
	require.True(t, shouldExit)
	require.Contains(t, out.String(), "Usage:")
}

func TestParse_InvalidValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
	}{
		{"bad config format", []string{"-config-format", "toml", "p.hcl"}},
		{"bad log format", []string{"-log-format", "xml", "p.hcl"}},
		{"bad log level", []string{"-log-level", "verbose", "p.hcl"}},
		{"negative workers", []string{"-workers", "-1", "p.hcl"}},
		{"negative history", []string{"-history-size", "-5", "p.hcl"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := Parse(tc.args, &bytes.Buffer{})

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			require.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestLoadSignal(t *testing.T) {
	t.Parallel()

	// Empty path yields an empty payload.
	payload, err := LoadSignal("")
	require.NoError(t, err)
	require.Empty(t, payload)

	// A JSON file round-trips.
	path := filepath.Join(t.TempDir(), "sig.json")
	raw, _ := json.Marshal(map[string]any{"signal_id": "sig-1", "price": 101.5})
	require.NoError(t, os.WriteFile(path, raw, 0600))

	payload, err = LoadSignal(path)
	require.NoError(t, err)
	require.Equal(t, "sig-1", payload["signal_id"])
	require.Equal(t, 101.5, payload["price"])

	// Invalid JSON is a usage error.
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{nope"), 0600))
	_, err = LoadSignal(bad)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)

	// Missing file is a usage error too.
	_, err = LoadSignal(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorAs(t, err, &exitErr)
}
