// Package main is the entry point for the core IPC bridge.
//
// The bridge reads newline-delimited JSON envelopes from stdin, forwards
// them to the proxy core over its local IPC endpoint, and writes
// responses and stream messages to stdout. Logs go to stderr.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/coreipc/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// exitFunc terminates the process. Tests replace it.
var exitFunc = os.Exit

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	cfg, err := loadAndValidateConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		exitFunc(1)
		return
	}

	logger := initLogger(flags, observability.LogConfig{
		Level:  cfg.Spec.Logging.Level,
		Format: cfg.Spec.Logging.Format,
		Output: cfg.Spec.Logging.Output,
	})
	defer func() { _ = logger.Sync() }()

	logger.Info("starting coreipc-bridge",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.String("endpoint", cfg.Spec.Endpoint),
	)

	app := initApplication(cfg, logger)
	runBridge(app, flags.configPath, logger)
}

// parseFlags parses command line flags. Empty log flags fall back to the
// configuration file.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("COREIPC_CONFIG_PATH", ""),
		"Path to configuration file (defaults apply when empty)")
	logLevel := flag.String("log-level", getEnvOrDefault("COREIPC_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("COREIPC_LOG_FORMAT", ""),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("coreipc-bridge version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger creates the process logger. Flags override the configured
// level and format.
func initLogger(flags cliFlags, base observability.LogConfig) observability.Logger {
	cfg := base
	if flags.logLevel != "" {
		cfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		exitFunc(1)
		return nil
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// fatalWithSync logs at error level, flushes the logger, and exits.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	exitFunc(1)
}
