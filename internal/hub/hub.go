package hub

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/coreipc/internal/forwarder"
	"github.com/vyrodovalexey/coreipc/internal/observability"
	"github.com/vyrodovalexey/coreipc/internal/pool"
	"github.com/vyrodovalexey/coreipc/internal/retry"
	"github.com/vyrodovalexey/coreipc/internal/stream"
	"github.com/vyrodovalexey/coreipc/internal/transport"
)

// Config contains hub configuration.
type Config struct {
	Endpoint            string
	PoolMaxSize         int
	IdleTimeout         time.Duration
	HealthCheckInterval time.Duration
	MaxRetries          int
	Backoff             retry.Backoff
	Dispatcher          DispatcherConfig
	TrafficPath         string
	LogsPath            string
	Breaker             stream.BreakerConfig
}

// DefaultConfig returns default hub configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:            transport.DefaultEndpoint,
		PoolMaxSize:         pool.DefaultMaxSize,
		IdleTimeout:         pool.DefaultIdleTimeout,
		HealthCheckInterval: pool.DefaultHealthCheckInterval,
		MaxRetries:          retry.DefaultMaxRetries,
		Backoff:             retry.NewConstantBackoff(retry.DefaultBackoff),
		Dispatcher:          DispatcherConfig{QueueSize: DefaultQueueSize},
		TrafficPath:         stream.DefaultTrafficPath,
		LogsPath:            stream.DefaultLogsPath,
		Breaker: stream.BreakerConfig{
			MaxFailures: stream.DefaultBreakerFailures,
			OpenTimeout: stream.DefaultBreakerTimeout,
		},
	}
}

// CleanupStats reports what CleanupAllNetworkResources released.
type CleanupStats struct {
	Streams     int `json:"streams"`
	Connections int `json:"connections"`
}

// Hub owns the pool, forwarder, streaming manager, and dispatcher.
type Hub struct {
	pool       *pool.ConnectionPool
	health     *pool.HealthChecker
	forwarder  *forwarder.Forwarder
	streams    *stream.Manager
	dispatcher *Dispatcher
	sink       Sink

	transport transport.Transport
	logger    observability.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Option is a functional option for configuring the hub.
type Option func(*Hub)

// WithLogger sets the logger for the hub and its components.
func WithLogger(logger observability.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithMetrics sets the metrics shared by all components.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithTracer sets the tracer shared by all components.
func WithTracer(t *observability.Tracer) Option {
	return func(h *Hub) {
		h.tracer = t
	}
}

// WithTransport sets the transport used to reach the core.
func WithTransport(t transport.Transport) Option {
	return func(h *Hub) {
		h.transport = t
	}
}

// New builds a hub and all of its components. Call Start before Handle.
func New(cfg Config, sink Sink, opts ...Option) *Hub {
	h := &Hub{
		sink:      sink,
		transport: transport.Default(),
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.tracer == nil {
		h.tracer = observability.NoopTracer()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = transport.DefaultEndpoint
	}
	if cfg.Backoff == nil {
		cfg.Backoff = retry.NewConstantBackoff(retry.DefaultBackoff)
	}

	h.pool = pool.NewConnectionPool(
		pool.PoolConfig{
			Endpoint:    cfg.Endpoint,
			MaxSize:     cfg.PoolMaxSize,
			IdleTimeout: cfg.IdleTimeout,
		},
		pool.WithTransport(h.transport),
		pool.WithLogger(h.logger),
		pool.WithMetrics(h.metrics),
	)

	h.health = pool.NewHealthChecker(h.pool, cfg.HealthCheckInterval,
		pool.WithHealthCheckLogger(h.logger),
		pool.WithHealthCheckMetrics(h.metrics),
	)

	h.forwarder = forwarder.New(h.pool,
		forwarder.WithGate(forwarder.NewMutationGate()),
		forwarder.WithMaxRetries(cfg.MaxRetries),
		forwarder.WithBackoff(cfg.Backoff),
		forwarder.WithLogger(h.logger),
		forwarder.WithMetrics(h.metrics),
		forwarder.WithTracer(h.tracer),
	)

	h.streams = stream.NewManager(cfg.Endpoint, sink,
		stream.WithPaths(cfg.TrafficPath, cfg.LogsPath),
		stream.WithManagerLogger(h.logger),
		stream.WithManagerMetrics(h.metrics),
		stream.WithManagerTracer(h.tracer),
		stream.WithClientOptions(
			stream.WithClientTransport(h.transport),
			stream.WithBreaker(cfg.Breaker),
		),
	)

	h.dispatcher = NewDispatcher(cfg.Dispatcher, h.logger, h.metrics)
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.logger = h.logger.With(observability.String("component", "hub"))

	return h
}

// Start launches the health checker and the dispatcher workers. The
// health checker stops when ctx is done. Requests keep running until
// Close has drained them.
func (h *Hub) Start(ctx context.Context) {
	h.health.Start(ctx)
	h.dispatcher.Start(h.ctx)

	h.logger.Info("hub started",
		observability.String("endpoint", h.pool.Endpoint()),
	)
}

// Handle forwards req in the background and delivers the Response to the
// sink. It blocks only while the dispatcher queue is full.
func (h *Hub) Handle(req Request) error {
	return h.dispatcher.Submit(h.ctx, func(ctx context.Context) {
		h.sink.SendResponse(h.Do(ctx, req))
	})
}

// Do forwards req and returns the Response. Failures are reported in the
// Response, never as a panic or error.
func (h *Hub) Do(ctx context.Context, req Request) Response {
	ctx = observability.ContextWithRequestID(ctx, strconv.FormatInt(req.ID, 10))
	ctx = observability.ContextWithTraceID(ctx, uuid.NewString())

	method := strings.ToUpper(req.Method)
	body := req.Body

	switch method {
	case http.MethodGet, http.MethodDelete:
		body = nil
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		h.logger.WithContext(ctx).Warn("unsupported request method",
			observability.String("method", req.Method),
			observability.String("path", req.Path),
		)
		return Response{
			ID:           req.ID,
			ErrorMessage: fmt.Sprintf("unsupported method %q", req.Method),
		}
	}

	res, err := h.forwarder.Forward(ctx, method, req.Path, body)
	if err != nil {
		return Response{
			ID:           req.ID,
			ErrorMessage: err.Error(),
		}
	}

	return Response{
		ID:         req.ID,
		StatusCode: res.StatusCode,
		Body:       res.Body,
		Success:    true,
	}
}

// StartStream starts the named stream and reports the outcome to the sink.
func (h *Hub) StartStream(ctx context.Context, kind string) StreamResult {
	result := StreamResult{Kind: kind, Success: true}

	k, err := stream.ParseKind(kind)
	if err == nil {
		_, err = h.streams.Start(ctx, k)
	}
	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
	}

	h.sink.SendStreamResult(result)
	return result
}

// StopStream stops the named stream and reports the outcome to the sink.
// Stopping a stream that is not running succeeds.
func (h *Hub) StopStream(kind string) StreamResult {
	result := StreamResult{Kind: kind, Success: true}

	k, err := stream.ParseKind(kind)
	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
	} else {
		h.streams.Stop(k)
	}

	h.sink.SendStreamResult(result)
	return result
}

// CleanupAllNetworkResources disconnects every stream and flushes the
// pool. The hub stays usable; new work reconnects on demand.
func (h *Hub) CleanupAllNetworkResources() CleanupStats {
	stats := CleanupStats{
		Streams:     h.streams.CleanupAll(),
		Connections: h.pool.Flush(),
	}

	h.logger.Info("network resources cleaned up",
		observability.Int("streams", stats.Streams),
		observability.Int("connections", stats.Connections),
	)

	return stats
}

// Close stops accepting requests, waits for queued and in-flight ones to
// answer, then releases every network resource.
func (h *Hub) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.dispatcher.Close()
		h.cancel()
		h.health.Stop()
		h.CleanupAllNetworkResources()
		err = h.pool.Close()
		h.logger.Info("hub closed")
	})
	return err
}

// Pool returns the connection pool.
func (h *Hub) Pool() *pool.ConnectionPool {
	return h.pool
}

// Forwarder returns the request forwarder.
func (h *Hub) Forwarder() *forwarder.Forwarder {
	return h.forwarder
}

// Streams returns the streaming manager.
func (h *Hub) Streams() *stream.Manager {
	return h.streams
}

// Dispatcher returns the request dispatcher.
func (h *Hub) Dispatcher() *Dispatcher {
	return h.dispatcher
}
