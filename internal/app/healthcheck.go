package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// healthHandler creates an http.Handler that logs requests to the provided logger.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// startHealthcheckServer initializes and runs the health check HTTP server.
// A server already running for this App is left alone.
func (a *App) startHealthcheckServer(port int) {
	a.logger.Debug("Configuring health check server.")

	a.httpMu.Lock()
	defer a.httpMu.Unlock()
	if a.httpServer != nil {
		a.logger.Debug("Health check server already running.")
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)

	addr := fmt.Sprintf(":%d", port)

	// Create the server instance and store it on the app struct.
	a.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	srv := a.httpServer

	// Run the server in a goroutine so it doesn't block.
	go func() {
		a.logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		// ListenAndServe will return an error on graceful shutdown.
		// We check for this specific error to avoid logging a false positive.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

// closeHealthcheckServer gracefully shuts the health check server down and
// frees its port for the next run.
func (a *App) closeHealthcheckServer(ctx context.Context) error {
	a.logger.Debug("Closing health check server...")

	a.httpMu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.httpMu.Unlock()

	if srv == nil {
		a.logger.Debug("Health check server was not running.")
		return nil
	}

	// Create a context with a timeout for the shutdown process.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	a.logger.Info("🩺 Shutting down health check server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Health check server shutdown failed", "error", err)
		return err
	}

	a.logger.Debug("Health check server shut down gracefully.")
	return nil
}
