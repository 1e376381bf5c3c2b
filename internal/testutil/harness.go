// Package testutil provides shared helpers for system tests: a harness that
// stands up a full application from inline pipeline definitions, and mock
// modules that record execution timings.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/signalgridgo/internal/app"
	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/executor"
	"github.com/vk/signalgridgo/internal/hcl"
	"github.com/vk/signalgridgo/internal/registry"
	"github.com/vk/signalgridgo/internal/yamlcfg"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a system test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	Result    *executor.RunResult
	App       *app.App
}

// RunPipelineTest provides a standardized harness using a default background
// context and a minimal synthetic signal.
func RunPipelineTest(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	signal := map[string]any{"signal_id": "sig-test", "source": "harness"}
	return RunPipelineTestWithSignal(context.Background(), t, files, signal, modules...)
}

// RunPipelineTestWithSignal stands up a full application from the given
// pipeline files, pushes the signal through it, and captures the outcome.
// The loader is chosen by file extension; .yaml files use the YAML loader.
func RunPipelineTestWithSignal(ctx context.Context, t *testing.T, files map[string]string, signal map[string]any, modules ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	useYAML := false
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
		if strings.HasSuffix(name, ".yaml") {
			useYAML = true
		}
	}

	var loader config.Loader = hcl.NewLoader()
	if useYAML {
		loader = yamlcfg.NewLoader()
	}

	appConfig := &app.AppConfig{
		PipelinePath: tmpDir,
		LogLevel:     "debug",
		LogFormat:    "text",
		WorkerCount:  4,
	}

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, loader, modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
		}
	}

	signalID, _ := signal["signal_id"].(string)
	if signalID == "" {
		signalID = "sig-test"
	}
	result, runErr := testApp.Run(ctx, appConfig, signalID, signal)

	if os.Getenv("SGGO_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		Result:    result,
		App:       testApp,
	}
}
