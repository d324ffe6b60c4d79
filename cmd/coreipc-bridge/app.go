package main

import (
	"net/http"
	"os"

	"github.com/vyrodovalexey/coreipc/internal/bridge"
	"github.com/vyrodovalexey/coreipc/internal/config"
	"github.com/vyrodovalexey/coreipc/internal/hub"
	"github.com/vyrodovalexey/coreipc/internal/observability"
	"github.com/vyrodovalexey/coreipc/internal/retry"
	"github.com/vyrodovalexey/coreipc/internal/stream"
)

// application holds all application components.
type application struct {
	config      *config.BridgeConfig
	hub         *hub.Hub
	codec       *bridge.Codec
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	adminServer *http.Server
	logger      observability.Logger
}

// initApplication wires the codec on stdin/stdout to a hub built from cfg.
func initApplication(cfg *config.BridgeConfig, logger observability.Logger) *application {
	metrics := observability.NewMetrics(cfg.Spec.Metrics.Namespace)
	metrics.InitVecMetrics()
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer := initTracer(cfg, logger)

	codec := bridge.NewCodec(os.Stdin, os.Stdout, bridge.WithLogger(logger))
	h := hub.New(hubConfig(cfg), codec,
		hub.WithLogger(logger),
		hub.WithMetrics(metrics),
		hub.WithTracer(tracer),
	)

	return &application{
		config:  cfg,
		hub:     h,
		codec:   codec,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
	}
}

// hubConfig converts the file configuration into hub settings.
func hubConfig(cfg *config.BridgeConfig) hub.Config {
	s := cfg.Spec

	return hub.Config{
		Endpoint:            s.Endpoint,
		PoolMaxSize:         s.Pool.MaxSize,
		IdleTimeout:         s.Pool.IdleTimeout.Duration(),
		HealthCheckInterval: s.Pool.HealthCheckInterval.Duration(),
		MaxRetries:          s.Forwarder.Retries(),
		Backoff: retry.NewBackoff(
			retry.BackoffType(s.Forwarder.BackoffType),
			s.Forwarder.RetryBackoff.Duration(),
			s.Forwarder.MaxBackoff.Duration(),
		),
		Dispatcher: hub.DispatcherConfig{
			Workers:   s.Dispatcher.Workers,
			QueueSize: s.Dispatcher.QueueSize,
		},
		TrafficPath: s.Streams.TrafficPath,
		LogsPath:    s.Streams.LogsPath,
		Breaker: stream.BreakerConfig{
			MaxFailures: uint32(s.Streams.Breaker.MaxFailures),
			OpenTimeout: s.Streams.Breaker.OpenTimeout.Duration(),
		},
	}
}

// initTracer initializes the tracer from the tracing section.
func initTracer(cfg *config.BridgeConfig, logger observability.Logger) *observability.Tracer {
	t := cfg.Spec.Tracing

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  t.ServiceName,
		OTLPEndpoint: t.OTLPEndpoint,
		SamplingRate: t.SamplingRate,
		Enabled:      t.Enabled,
	})
	if err != nil {
		fatalWithSync(logger, "failed to initialize tracer", observability.Error(err))
		return observability.NoopTracer()
	}

	return tracer
}
