package config

import "time"

// Root identifiers of a bridge configuration document.
const (
	APIVersion = "coreipc/v1"
	Kind       = "Bridge"
)

// Default values applied to omitted fields.
const (
	DefaultPoolMaxSize         = 300
	DefaultIdleTimeout         = 500 * time.Millisecond
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultMaxRetries          = 2
	DefaultRetryBackoff        = 200 * time.Millisecond
	DefaultMaxBackoff          = 2 * time.Second
	DefaultQueueSize           = 1024
	DefaultTrafficPath         = "/traffic"
	DefaultLogsPath            = "/logs?level=info"
	DefaultBreakerFailures     = 5
	DefaultBreakerOpenTimeout  = 10 * time.Second
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultLogOutput           = "stderr"
	DefaultMetricsAddress      = "127.0.0.1:9091"
	DefaultMetricsNamespace    = "coreipc"
	DefaultServiceName         = "coreipc-bridge"
)

// Backoff strategies between forwarder retries.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// BridgeConfig is the root configuration document.
type BridgeConfig struct {
	APIVersion string     `yaml:"apiVersion" json:"apiVersion"`
	Kind       string     `yaml:"kind" json:"kind"`
	Metadata   Metadata   `yaml:"metadata" json:"metadata"`
	Spec       BridgeSpec `yaml:"spec" json:"spec"`
}

// Metadata identifies the bridge instance.
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// BridgeSpec contains the bridge settings.
type BridgeSpec struct {
	// Endpoint is the core's local IPC endpoint. Empty selects the
	// platform default.
	Endpoint   string           `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Pool       PoolConfig       `yaml:"pool" json:"pool"`
	Forwarder  ForwarderConfig  `yaml:"forwarder" json:"forwarder"`
	Dispatcher DispatcherConfig `yaml:"dispatcher" json:"dispatcher"`
	Streams    StreamsConfig    `yaml:"streams" json:"streams"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing" json:"tracing"`
}

// PoolConfig configures the connection pool.
type PoolConfig struct {
	MaxSize             int      `yaml:"maxSize,omitempty" json:"maxSize,omitempty"`
	IdleTimeout         Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	HealthCheckInterval Duration `yaml:"healthCheckInterval,omitempty" json:"healthCheckInterval,omitempty"`
}

// ForwarderConfig configures request forwarding.
type ForwarderConfig struct {
	// MaxRetries is the number of retries after the first attempt. Nil
	// selects the default; zero disables retries.
	MaxRetries   *int     `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
	RetryBackoff Duration `yaml:"retryBackoff,omitempty" json:"retryBackoff,omitempty"`
	BackoffType  string   `yaml:"backoffType,omitempty" json:"backoffType,omitempty"`
	MaxBackoff   Duration `yaml:"maxBackoff,omitempty" json:"maxBackoff,omitempty"`
}

// DispatcherConfig configures the request dispatcher.
type DispatcherConfig struct {
	// Workers bounds concurrent requests. Zero runs one goroutine per
	// request.
	Workers   int `yaml:"workers,omitempty" json:"workers,omitempty"`
	QueueSize int `yaml:"queueSize,omitempty" json:"queueSize,omitempty"`
}

// StreamsConfig configures the streaming subscriptions.
type StreamsConfig struct {
	TrafficPath string        `yaml:"trafficPath,omitempty" json:"trafficPath,omitempty"`
	LogsPath    string        `yaml:"logsPath,omitempty" json:"logsPath,omitempty"`
	Breaker     BreakerConfig `yaml:"breaker" json:"breaker"`
}

// BreakerConfig configures the stream connect circuit breaker.
type BreakerConfig struct {
	MaxFailures int      `yaml:"maxFailures,omitempty" json:"maxFailures,omitempty"`
	OpenTimeout Duration `yaml:"openTimeout,omitempty" json:"openTimeout,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig configures the admin server that exposes metrics and
// health endpoints.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Address   string `yaml:"address,omitempty" json:"address,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *BridgeConfig {
	cfg := &BridgeConfig{
		APIVersion: APIVersion,
		Kind:       Kind,
		Metadata:   Metadata{Name: "default"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills omitted fields with their defaults.
func (c *BridgeConfig) ApplyDefaults() {
	s := &c.Spec

	if s.Pool.MaxSize == 0 {
		s.Pool.MaxSize = DefaultPoolMaxSize
	}
	if s.Pool.IdleTimeout == 0 {
		s.Pool.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if s.Pool.HealthCheckInterval == 0 {
		s.Pool.HealthCheckInterval = Duration(DefaultHealthCheckInterval)
	}

	if s.Forwarder.MaxRetries == nil {
		n := DefaultMaxRetries
		s.Forwarder.MaxRetries = &n
	}
	if s.Forwarder.RetryBackoff == 0 {
		s.Forwarder.RetryBackoff = Duration(DefaultRetryBackoff)
	}
	if s.Forwarder.BackoffType == "" {
		s.Forwarder.BackoffType = BackoffConstant
	}
	if s.Forwarder.MaxBackoff == 0 {
		s.Forwarder.MaxBackoff = Duration(DefaultMaxBackoff)
	}

	if s.Dispatcher.QueueSize == 0 {
		s.Dispatcher.QueueSize = DefaultQueueSize
	}

	if s.Streams.TrafficPath == "" {
		s.Streams.TrafficPath = DefaultTrafficPath
	}
	if s.Streams.LogsPath == "" {
		s.Streams.LogsPath = DefaultLogsPath
	}
	if s.Streams.Breaker.MaxFailures == 0 {
		s.Streams.Breaker.MaxFailures = DefaultBreakerFailures
	}
	if s.Streams.Breaker.OpenTimeout == 0 {
		s.Streams.Breaker.OpenTimeout = Duration(DefaultBreakerOpenTimeout)
	}

	if s.Logging.Level == "" {
		s.Logging.Level = DefaultLogLevel
	}
	if s.Logging.Format == "" {
		s.Logging.Format = DefaultLogFormat
	}
	if s.Logging.Output == "" {
		s.Logging.Output = DefaultLogOutput
	}

	if s.Metrics.Address == "" {
		s.Metrics.Address = DefaultMetricsAddress
	}
	if s.Metrics.Namespace == "" {
		s.Metrics.Namespace = DefaultMetricsNamespace
	}

	if s.Tracing.ServiceName == "" {
		s.Tracing.ServiceName = DefaultServiceName
	}
}

// Retries returns the configured retry count.
func (f ForwarderConfig) Retries() int {
	if f.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *f.MaxRetries
}
