package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/coreipc/internal/config"
	"github.com/vyrodovalexey/coreipc/internal/health"
	"github.com/vyrodovalexey/coreipc/internal/observability"
)

const (
	// shutdownTimeout bounds the graceful shutdown.
	shutdownTimeout = 30 * time.Second

	// coreReadyInterval paces the startup probe of the core.
	coreReadyInterval = time.Second
)

// runBridge serves the codec until stdin closes or a shutdown signal
// arrives, then shuts everything down.
func runBridge(app *application, configPath string, logger observability.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.hub.Start(ctx)
	startAdminServerIfEnabled(app)
	watcher := startConfigWatcher(ctx, app, configPath, logger)
	go waitForCore(ctx, app)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.codec.Serve(ctx, app.hub)
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			logger.Error("bridge input failed", observability.Error(err))
		} else {
			logger.Info("bridge input closed")
		}
	}
	stop()

	shutdown(app, watcher, logger)
}

// waitForCore logs once the core answers. Requests are accepted before
// that and fail fast with a not-ready error.
func waitForCore(ctx context.Context, app *application) {
	err := app.hub.Forwarder().WaitReady(ctx, health.CorePath, coreReadyInterval)
	if err != nil && ctx.Err() == nil {
		app.logger.Warn("stopped waiting for core", observability.Error(err))
	}
}

// shutdown stops the watcher, the hub, the admin server, and the tracer.
func shutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.hub.Close(); err != nil {
		logger.Error("failed to close hub", observability.Error(err))
	}

	if err := app.codec.Err(); err != nil {
		logger.Error("bridge output failed", observability.Error(err))
	}

	if app.adminServer != nil {
		logger.Info("stopping admin server")
		if err := app.adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop admin server gracefully", observability.Error(err))
		}
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("bridge stopped")
}
