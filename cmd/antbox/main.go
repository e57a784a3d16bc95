// Command antbox runs the node service with its health and metrics
// endpoints. The full REST surface lives in a separate gateway; this binary
// hosts the core and its background subscribers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"antbox-backend/internal/config"
	"antbox-backend/internal/di"
)

func main() {
	configPath := os.Getenv("ANTBOX_CONFIG")

	container, cleanup, err := di.InitializeContainer(di.ConfigPath(configPath))
	if err != nil {
		os.Stderr.WriteString("failed to initialize: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer cleanup()

	logger := container.Logger
	cfg := container.Config

	var watcher *config.Watcher
	if cfg.Environment == config.Development && configPath != "" {
		watcher, err = config.NewWatcher(configPath, cfg, logger)
		if err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      container.Router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("antbox listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("environment", string(cfg.Environment)),
			zap.String("nodesBackend", cfg.Nodes.Backend),
			zap.String("binariesBackend", cfg.Binaries.Backend),
			zap.String("semanticBackend", cfg.Semantic.Backend),
		)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
		}
	}
}
