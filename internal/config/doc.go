// Package config provides configuration types and loading for the bridge.
//
// This package defines the configuration model, YAML loading with
// environment variable substitution, validation, and file watching for
// hot-reload support.
//
// # Features
//
//   - YAML configuration file loading
//   - Environment variable substitution with ${VAR:-default} syntax
//   - Defaults for every omitted field
//   - Configuration validation with detailed error reporting
//   - File watching for configuration hot-reload
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("bridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # File Watching
//
//	watcher, err := config.NewWatcher(path, func(cfg *config.BridgeConfig) {
//	    // apply log level and pool size
//	}, config.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := watcher.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer watcher.Stop()
package config
