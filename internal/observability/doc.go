// Package observability provides logging, metrics, and tracing
// functionality for the core IPC bridge.
//
// # Logging
//
// The Logger interface provides structured logging backed by zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request forwarded",
//	    observability.String("method", "GET"),
//	    observability.Int("status", 200),
//	)
//
// The level can be changed at runtime with SetLevel, which is how a
// configuration reload applies a new log level without rebuilding the
// logger tree.
//
// # Metrics
//
// Metrics owns a private Prometheus registry with collectors for the
// connection pool, the request forwarder, the mutation gate, and the
// streaming manager. Components receive the same *Metrics instance so
// the admin server can expose everything from one registry:
//
//	metrics := observability.NewMetrics("coreipc")
//	handler := metrics.Handler()
//
// # Tracing
//
// Tracer wraps an OpenTelemetry tracer provider. When tracing is
// disabled the global no-op provider is used, so spans are cheap.
package observability
