package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Rushikesh-Raval/Text/internal/relay"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file (environment variables still override)")
	flag.Parse()

	logger := slog.With("component", "relay")

	if err := godotenv.Load(); err != nil {
		logger.Warn("file .env not found, using system environment variables")
	}

	cfg := relay.ConfigFromEnv()
	if *configPath != "" {
		fileCfg, err := relay.LoadConfigFile(*configPath)
		if err != nil {
			logger.Error("loading config file", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = relay.ApplyEnv(fileCfg)
	}

	hub := relay.NewHub(cfg, logger)
	go hub.Run()

	handler := relay.NewHandler(hub, logger)
	server := relay.CreateServer(cfg.Port, handler.Routes())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- relay.StartServer(server, logger)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	if err := relay.ShutdownServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Warn("http shutdown did not complete cleanly", "error", err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("hub shutdown did not complete cleanly", "error", err)
	}
}
