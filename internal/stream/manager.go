package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/coreipc/internal/observability"
)

// Default endpoint paths for each stream kind.
const (
	DefaultTrafficPath = "/traffic"
	DefaultLogsPath    = "/logs?level=info"
)

// ErrUnknownKind is returned for a stream kind the manager does not serve.
var ErrUnknownKind = errors.New("unknown stream kind")

// Kind names a stream feed.
type Kind string

// Stream kinds.
const (
	KindTraffic Kind = "traffic"
	KindLogs    Kind = "logs"
)

// Kinds lists every stream kind.
func Kinds() []Kind {
	return []Kind{KindTraffic, KindLogs}
}

// ParseKind converts s to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTraffic, KindLogs:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Manager keeps at most one current subscription per kind.
type Manager struct {
	endpoint   string
	sink       Sink
	paths      map[Kind]string
	clientOpts []ClientOption
	baseLogger observability.Logger
	logger     observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer

	mu      sync.Mutex
	client  *Client
	current map[Kind]Handle
}

// ManagerOption is a functional option for configuring the manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the manager and its client.
func WithManagerLogger(logger observability.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithManagerMetrics sets the metrics for the manager.
func WithManagerMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithManagerTracer sets the tracer for the manager.
func WithManagerTracer(tracer *observability.Tracer) ManagerOption {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// WithPaths overrides the endpoint paths. Empty values keep the default.
func WithPaths(traffic, logs string) ManagerOption {
	return func(m *Manager) {
		if traffic != "" {
			m.paths[KindTraffic] = traffic
		}
		if logs != "" {
			m.paths[KindLogs] = logs
		}
	}
}

// WithClientOptions passes options to the lazily created client.
func WithClientOptions(opts ...ClientOption) ManagerOption {
	return func(m *Manager) {
		m.clientOpts = append(m.clientOpts, opts...)
	}
}

// NewManager creates a new manager delivering decoded messages to sink.
func NewManager(endpoint string, sink Sink, opts ...ManagerOption) *Manager {
	m := &Manager{
		endpoint: endpoint,
		sink:     sink,
		paths: map[Kind]string{
			KindTraffic: DefaultTrafficPath,
			KindLogs:    DefaultLogsPath,
		},
		logger:  observability.NopLogger(),
		current: make(map[Kind]Handle),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.tracer == nil {
		m.tracer = observability.NoopTracer()
	}
	m.baseLogger = m.logger
	m.logger = m.logger.With(observability.String("component", "stream-manager"))

	return m
}

// EnsureClient returns the client, creating it on first use.
func (m *Manager) EnsureClient() *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureClientLocked()
}

func (m *Manager) ensureClientLocked() *Client {
	if m.client == nil {
		opts := append([]ClientOption{WithClientLogger(m.baseLogger)}, m.clientOpts...)
		m.client = NewClient(m.endpoint, opts...)
	}
	return m.client
}

// Start connects the kind's feed and makes it the current subscription.
// A previous subscription of the same kind is disconnected once the new
// one is live.
func (m *Manager) Start(ctx context.Context, kind Kind) (Handle, error) {
	path, ok := m.paths[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	ctx, span := m.tracer.StartSpan(ctx, "coreipc.stream.start",
		trace.WithAttributes(
			attribute.String("stream.kind", string(kind)),
			attribute.String("stream.path", path),
		),
	)
	defer span.End()

	client := m.EnsureClient()

	h, err := client.Connect(ctx, path, m.deliver(kind))
	if err == nil {
		m.mu.Lock()
		if m.client != client {
			// CleanupAll ran while connecting.
			m.mu.Unlock()
			client.Disconnect(h)
			err = ErrClientClosed
		} else {
			prev, had := m.current[kind]
			m.current[kind] = h
			m.mu.Unlock()

			if had && prev != h && client.Disconnect(prev) {
				m.logger.Info("replaced previous stream",
					observability.String("kind", string(kind)),
					observability.Uint32("handle", uint32(prev)),
				)
			}
		}
	}

	if m.metrics != nil {
		m.metrics.RecordStreamStart(string(kind), err == nil)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.WithContext(ctx).Error("stream start failed",
			observability.String("kind", string(kind)),
			observability.Error(err),
		)
		return 0, err
	}

	if m.metrics != nil {
		m.metrics.SetStreamActive(string(kind), 1)
	}
	span.SetAttributes(attribute.Int64("stream.handle", int64(h)))
	m.logger.WithContext(ctx).Info("stream started",
		observability.String("kind", string(kind)),
		observability.Uint32("handle", uint32(h)),
	)

	return h, nil
}

// Stop disconnects the kind's current subscription, if any. Stopping a
// kind with nothing running is not an error.
func (m *Manager) Stop(kind Kind) {
	m.mu.Lock()
	h, ok := m.current[kind]
	delete(m.current, kind)
	client := m.client
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetStreamActive(string(kind), 0)
	}

	if !ok || client == nil {
		m.logger.Debug("stream stop with nothing running",
			observability.String("kind", string(kind)),
		)
		return
	}

	client.Disconnect(h)
	m.logger.Info("stream stopped",
		observability.String("kind", string(kind)),
		observability.Uint32("handle", uint32(h)),
	)
}

// CleanupAll disconnects every subscription and drops the client. It
// returns the number of subscriptions that were live.
func (m *Manager) CleanupAll() int {
	m.mu.Lock()
	client := m.client
	m.client = nil
	clear(m.current)
	m.mu.Unlock()

	if m.metrics != nil {
		for _, kind := range Kinds() {
			m.metrics.SetStreamActive(string(kind), 0)
		}
	}

	if client == nil {
		return 0
	}

	n := client.Close()
	m.logger.Info("stream client cleaned up",
		observability.Int("disconnected", n),
	)
	return n
}

// CurrentHandle returns the kind's current subscription handle.
func (m *Manager) CurrentHandle(kind Kind) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.current[kind]
	return h, ok
}

// Active returns the number of live subscriptions on the current client.
func (m *Manager) Active() int {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return 0
	}
	return client.Active()
}

func (m *Manager) deliver(kind Kind) func([]byte) {
	return func(data []byte) {
		var err error
		switch kind {
		case KindTraffic:
			var t TrafficData
			if t, err = DecodeTraffic(data); err == nil {
				m.sink.SendTraffic(t)
			}
		case KindLogs:
			var l LogData
			if l, err = DecodeLog(data); err == nil {
				m.sink.SendLog(l)
			}
		}

		if err != nil {
			m.logger.Debug("dropped malformed stream message",
				observability.String("kind", string(kind)),
				observability.Error(err),
			)
			if m.metrics != nil {
				m.metrics.RecordStreamDropped(string(kind))
			}
			return
		}

		if m.metrics != nil {
			m.metrics.RecordStreamMessage(string(kind))
		}
	}
}
