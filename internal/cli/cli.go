package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/signalgridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Options is the parsed invocation: the application configuration plus the
// entrypoint-only settings that never reach the app itself.
type Options struct {
	App *app.AppConfig

	// ConfigFormat selects the pipeline loader: 'hcl' or 'yaml'.
	ConfigFormat string

	// SignalPath points at a JSON file holding the raw signal payload.
	// Empty means a minimal synthetic signal is used.
	SignalPath string

	// SignalID overrides the signal identity; empty means it is taken from
	// the payload or generated.
	SignalID string
}

// Parse processes command-line arguments. It returns the parsed options,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("signalgridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
SignalGridGo - A declarative, concurrency-first signal enrichment pipeline.

Usage:
  signalgridgo [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a single pipeline file or a directory containing pipeline files.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline file or directory.")
	pFlag := flagSet.String("p", "", "Path to the pipeline file or directory (shorthand).")
	signalFlag := flagSet.String("signal", "", "Path to a JSON file with the raw signal payload.")
	signalIDFlag := flagSet.String("signal-id", "", "Identity of the signal. Defaults to the payload's signal_id or a generated id.")
	formatFlag := flagSet.String("config-format", "hcl", "Pipeline definition format. Options: 'hcl' or 'yaml'.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", app.DefaultLogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", app.DefaultLogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 10, "Maximum number of stages executing concurrently. 0 is unbounded.")
	historyFlag := flagSet.Int("history-size", 0, "Snapshot history capacity. 0 uses the pipeline's setting.")
	strictFlag := flagSet.Bool("strict-collisions", false, "Fail the run when merging stages write conflicting keys.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Pipeline path determined.", "path", path)

	if path == "" {
		slog.Debug("No pipeline path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	format := strings.ToLower(*formatFlag)
	if format != "hcl" && format != "yaml" {
		return nil, false, &ExitError{Code: 2, Message: "invalid config-format: must be 'hcl' or 'yaml'"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if *workersFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid workers: must be 0 or positive"}
	}
	if *historyFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid history-size: must be 0 or positive"}
	}
	slog.Debug("CLI parameter validation complete.")

	return &Options{
		App: &app.AppConfig{
			PipelinePath:     path,
			HealthcheckPort:  *healthPortFlag,
			LogFormat:        logFormat,
			LogLevel:         logLevel,
			WorkerCount:      *workersFlag,
			HistorySize:      *historyFlag,
			StrictCollisions: *strictFlag,
		},
		ConfigFormat: format,
		SignalPath:   *signalFlag,
		SignalID:     *signalIDFlag,
	}, false, nil
}

// LoadSignal reads the raw signal payload from a JSON file. An empty path
// yields an empty payload for the caller to seed.
func LoadSignal(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("failed to read signal file: %v", err)}
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("failed to decode signal file %s: %v", path, err)}
	}
	return payload, nil
}
