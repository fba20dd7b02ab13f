// Package relay constructs and starts the HTTP service with sensible
// production defaults.
package relay

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates an HTTP server for the given address and handler with
// timeouts suited for long-lived WebSocket upgrades alongside plain requests.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer begins listening for connections and blocks until the server
// exits.
func StartServer(server *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("server listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for active
// connections to close or the timeout to pass.
func ShutdownServer(server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown", "error", err)
		return err
	}

	logger.Info("http server shutdown completed")
	return nil
}
