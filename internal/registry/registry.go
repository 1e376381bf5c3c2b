// Package registry holds the compile-time-checked mapping from declared
// stages to Go handler functions. Plugin handlers are keyed by plugin
// identifier, internal handlers by stage id; both are populated at startup
// and validated against the pipeline definition before anything executes.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExecContext carries run metadata into internal stage handlers.
type ExecContext struct {
	RunID     string
	SignalID  string
	StartedAt time.Time
	// Arguments is the stage's decoded argument body from config.
	Arguments map[string]any
}

// PluginHandler is the narrow plugin contract: transform the current
// payload, return a new payload. Handlers must be idempotent — retries
// repeat the call on the same input.
type PluginHandler func(ctx context.Context, payload map[string]any) (map[string]any, error)

// InternalHandler is the contract for statically registered stages; it
// additionally receives the execution context.
type InternalHandler func(ctx context.Context, ec ExecContext, payload map[string]any) (map[string]any, error)

// Module is the interface a package implements to contribute its handlers
// to a registry at startup.
type Module interface {
	Register(r *Registry)
}

// Registry holds all registered handlers for one application instance.
type Registry struct {
	plugins   map[string]PluginHandler
	internals map[string]InternalHandler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		plugins:   make(map[string]PluginHandler),
		internals: make(map[string]InternalHandler),
	}
}

// RegisterPlugin registers a plugin handler under its plugin key.
// Duplicate registration is a programmer error.
func (r *Registry) RegisterPlugin(key string, h PluginHandler) {
	if _, exists := r.plugins[key]; exists {
		panic(fmt.Sprintf("plugin handler with key '%s' already registered", key))
	}
	slog.Debug("Registering plugin handler.", "key", key)
	r.plugins[key] = h
}

// RegisterInternal registers an internal handler for the given stage id.
// Duplicate registration is a programmer error.
func (r *Registry) RegisterInternal(stageID string, h InternalHandler) {
	if _, exists := r.internals[stageID]; exists {
		panic(fmt.Sprintf("internal handler for stage '%s' already registered", stageID))
	}
	slog.Debug("Registering internal handler.", "stage", stageID)
	r.internals[stageID] = h
}

// Plugin looks up a plugin handler by key.
func (r *Registry) Plugin(key string) (PluginHandler, bool) {
	h, ok := r.plugins[key]
	return h, ok
}

// Internal looks up an internal handler by stage id.
func (r *Registry) Internal(stageID string) (InternalHandler, bool) {
	h, ok := r.internals[stageID]
	return h, ok
}
