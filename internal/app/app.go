package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/signalgridgo/internal/config"
	"github.com/vk/signalgridgo/internal/ctxlog"
	"github.com/vk/signalgridgo/internal/registry"
	"github.com/vk/signalgridgo/internal/runstore"
	"github.com/vk/signalgridgo/internal/state"
)

// AppConfig holds all the necessary configuration for an App instance to run.
type AppConfig struct {
	PipelinePath    string
	HealthcheckPort int
	LogFormat       string
	LogLevel        string
	WorkerCount     int

	// HistorySize overrides the pipeline's configured snapshot history
	// capacity when positive.
	HistorySize int

	// StrictCollisions overrides the pipeline's collision policy when true.
	StrictCollisions bool
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	config   *config.Model
	store    *runstore.Store

	httpMu     sync.Mutex
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, registry and
// run archive. Configuration problems are fatal startup errors and panic.
func NewApp(outW io.Writer, appConfig *AppConfig, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var configPaths []string
	if appConfig.PipelinePath != "" {
		configPaths = append(configPaths, appConfig.PipelinePath)
	}

	// Load all configuration into the format-agnostic model first.
	cfgModel, err := loader.Load(ctx, configPaths...)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	store := runstore.New()

	// Create and populate the registry with Go handlers.
	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(store)
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	// Validate the model itself, then check every declared stage resolves to
	// a registered handler. Both are mismatches between code and config, so
	// we panic.
	if err := cfgModel.Validate(ctx); err != nil {
		panic(err)
	}
	if err := reg.ValidateAgainst(ctx, cfgModel.Stages); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		config:   cfgModel,
		store:    store,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// RunStore returns the in-memory run archive. This is primarily for testing.
func (a *App) RunStore() *runstore.Store {
	return a.store
}

// Config returns the loaded configuration model.
func (a *App) Config() *config.Model {
	return a.config
}

// historySize resolves the snapshot history capacity: flag override first,
// then the pipeline block, then the default.
func (a *App) historySize(appConfig *AppConfig) int {
	if appConfig.HistorySize > 0 {
		return appConfig.HistorySize
	}
	if a.config.Pipeline != nil && a.config.Pipeline.HistorySize > 0 {
		return a.config.Pipeline.HistorySize
	}
	return state.DefaultHistorySize
}

// strictCollisions resolves the join collision policy.
func (a *App) strictCollisions(appConfig *AppConfig) bool {
	if appConfig.StrictCollisions {
		return true
	}
	return a.config.Pipeline != nil && a.config.Pipeline.StrictCollisions
}
