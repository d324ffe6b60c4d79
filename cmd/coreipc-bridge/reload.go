package main

import (
	"context"

	"github.com/vyrodovalexey/coreipc/internal/config"
	"github.com/vyrodovalexey/coreipc/internal/observability"
)

// startConfigWatcher starts watching the configuration file. It returns
// nil when no file was given or the watcher could not start.
func startConfigWatcher(
	ctx context.Context,
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, func(_, current *config.BridgeConfig) {
		applyReload(app, current)
	}, config.WithLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}

	return watcher
}

// applyReload applies the settings that can change at runtime: the log
// level and the pool size.
func applyReload(app *application, cfg *config.BridgeConfig) {
	if setter, ok := app.logger.(observability.LevelSetter); ok {
		if err := setter.SetLevel(cfg.Spec.Logging.Level); err != nil {
			app.logger.Error("failed to apply log level", observability.Error(err))
		}
	}

	app.hub.Pool().SetMaxSize(cfg.Spec.Pool.MaxSize)

	app.logger.Info("configuration reloaded",
		observability.String("log_level", cfg.Spec.Logging.Level),
		observability.Int("pool_max_size", cfg.Spec.Pool.MaxSize),
	)
}
