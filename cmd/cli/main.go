package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vk/signalgridgo/internal/app"
	"github.com/vk/signalgridgo/internal/cli"
	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/hcl"
	"github.com/vk/signalgridgo/internal/yamlcfg"
)

// main is the entrypoint for the signalgridgo application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) (err error) {
	opts, shouldExit, parseErr := cli.Parse(args, outW)
	if parseErr != nil {
		return parseErr
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical config errors, so we recover here and
	// surface the panic as a regular error with a clean exit code.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	rawSignal, err := cli.LoadSignal(opts.SignalPath)
	if err != nil {
		return err
	}
	signalID := resolveSignalID(opts.SignalID, rawSignal)
	if len(rawSignal) == 0 {
		rawSignal = map[string]any{
			"signal_id":   signalID,
			"received_at": time.Now().UTC().Format(time.RFC3339Nano),
		}
	}

	// Instantiate the concrete loader for the selected format.
	var loader config.Loader
	if opts.ConfigFormat == "yaml" {
		loader = yamlcfg.NewLoader()
	} else {
		loader = hcl.NewLoader()
	}
	gridApp := app.NewApp(outW, opts.App, loader)

	_, err = gridApp.Run(context.Background(), opts.App, signalID, rawSignal)
	return err
}

// resolveSignalID picks the signal identity: explicit flag, then the
// payload's own signal_id, then a generated one.
func resolveSignalID(flagID string, payload map[string]any) string {
	if flagID != "" {
		return flagID
	}
	if id, ok := payload["signal_id"].(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
