package app

import (
	"io"
	"log/slog"
)

// Defaults applied when the level or format reaching newLogger is empty or
// unrecognized. The CLI advertises the same values in its flag help.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger builds the App's slog.Logger. Nothing global is touched, so
// every App (and every test harness) carries an isolated logger.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	level, ok := logLevels[levelStr]
	if !ok {
		level = logLevels[DefaultLogLevel]
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "text" {
		return slog.New(slog.NewTextHandler(outW, opts))
	}
	return slog.New(slog.NewJSONHandler(outW, opts))
}
