package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values shared by the components that record into Metrics.
const (
	AcquirePooled    = "pooled"
	AcquireDialed    = "dialed"
	AcquireDiscarded = "discarded"
	AcquireFailed    = "failed"

	ReleaseReturned = "returned"
	ReleaseDropped  = "dropped"

	SweepCompleted = "completed"
	SweepSkipped   = "skipped"

	ResultSuccess  = "success"
	ResultNotReady = "not_ready"
	ResultFailure  = "failure"
)

// Metrics holds all Prometheus metrics for the bridge.
type Metrics struct {
	poolConnections   prometheus.Gauge
	poolAcquireTotal  *prometheus.CounterVec
	poolReleaseTotal  *prometheus.CounterVec
	poolFlushTotal    prometheus.Counter
	poolFlushedConns  prometheus.Counter
	healthSweepsTotal *prometheus.CounterVec
	healthEvicted     prometheus.Counter

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestRetries  *prometheus.CounterVec
	mutationWait    prometheus.Histogram
	queueDepth      prometheus.Gauge

	streamActive   *prometheus.GaugeVec
	streamStarts   *prometheus.CounterVec
	streamMessages *prometheus.CounterVec
	streamDropped  *prometheus.CounterVec

	buildInfo *prometheus.GaugeVec
	startTime prometheus.Gauge
	registry  *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "coreipc"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.poolConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "connections",
			Help:      "Number of idle connections resident in the pool",
		},
	)

	m.poolAcquireTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_total",
			Help:      "Connection acquisitions by source",
		},
		[]string{"source"},
	)

	m.poolReleaseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "release_total",
			Help:      "Connection releases by outcome",
		},
		[]string{"result"},
	)

	m.poolFlushTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "flush_total",
			Help:      "Number of full pool flushes",
		},
	)

	m.poolFlushedConns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "flushed_connections_total",
			Help:      "Connections discarded by pool flushes",
		},
	)

	m.healthSweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "health_sweeps_total",
			Help:      "Health check rounds by result (completed or skipped when the pool was busy)",
		},
		[]string{"result"},
	)

	m.healthEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "health_evicted_total",
			Help:      "Connections evicted by the health checker",
		},
	)

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forwarder",
			Name:      "requests_total",
			Help:      "Forwarded requests by method and result",
		},
		[]string{"method", "result"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forwarder",
			Name:      "request_duration_seconds",
			Help:      "End-to-end forwarding duration including retries",
			Buckets: []float64{
				.0005, .001, .0025, .005, .01,
				.025, .05, .1, .25, .5, 1, 2.5,
			},
		},
		[]string{"method"},
	)

	m.requestRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forwarder",
			Name:      "retries_total",
			Help:      "Retry attempts after a transient exchange failure",
		},
		[]string{"method"},
	)

	m.mutationWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forwarder",
			Name:      "mutation_wait_seconds",
			Help:      "Time mutating requests waited for the mutation permit",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	m.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "queue_depth",
			Help:      "Requests waiting for a dispatcher worker",
		},
	)

	m.streamActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active",
			Help:      "Active streaming subscriptions by kind",
		},
		[]string{"kind"},
	)

	m.streamStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "starts_total",
			Help:      "Stream start requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	m.streamMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Decoded stream messages delivered by kind",
		},
		[]string{"kind"},
	)

	m.streamDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "dropped_messages_total",
			Help:      "Malformed stream messages dropped by kind",
		},
		[]string{"kind"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information for the bridge",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.startTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Start time of the bridge in unix seconds",
		},
	)

	m.registerCollectors()

	m.startTime.SetToCurrentTime()

	return m
}

// registerCollectors registers all metric collectors with the
// Prometheus registry.
func (m *Metrics) registerCollectors() {
	m.registry.MustRegister(
		m.poolConnections,
		m.poolAcquireTotal,
		m.poolReleaseTotal,
		m.poolFlushTotal,
		m.poolFlushedConns,
		m.healthSweepsTotal,
		m.healthEvicted,
		m.requestsTotal,
		m.requestDuration,
		m.requestRetries,
		m.mutationWait,
		m.queueDepth,
		m.streamActive,
		m.streamStarts,
		m.streamMessages,
		m.streamDropped,
		m.buildInfo,
		m.startTime,
	)

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(
		collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{},
		),
	)
}

// InitVecMetrics pre-populates common label combinations with zero
// values so that Vec metrics appear in /metrics output immediately
// after startup. This method is idempotent.
func (m *Metrics) InitVecMetrics() {
	for _, source := range []string{AcquirePooled, AcquireDialed, AcquireDiscarded, AcquireFailed} {
		m.poolAcquireTotal.WithLabelValues(source)
	}
	m.poolReleaseTotal.WithLabelValues(ReleaseReturned)
	m.poolReleaseTotal.WithLabelValues(ReleaseDropped)
	m.healthSweepsTotal.WithLabelValues(SweepCompleted)
	m.healthSweepsTotal.WithLabelValues(SweepSkipped)
	for _, kind := range []string{"traffic", "logs"} {
		m.streamActive.WithLabelValues(kind)
		m.streamMessages.WithLabelValues(kind)
		m.streamDropped.WithLabelValues(kind)
	}
}

// SetPoolSize records the current number of pooled connections.
func (m *Metrics) SetPoolSize(n int) {
	m.poolConnections.Set(float64(n))
}

// RecordAcquire records one connection acquisition outcome.
func (m *Metrics) RecordAcquire(source string) {
	m.poolAcquireTotal.WithLabelValues(source).Inc()
}

// RecordRelease records one connection release outcome.
func (m *Metrics) RecordRelease(result string) {
	m.poolReleaseTotal.WithLabelValues(result).Inc()
}

// RecordFlush records a pool flush that discarded n connections.
func (m *Metrics) RecordFlush(n int) {
	m.poolFlushTotal.Inc()
	m.poolFlushedConns.Add(float64(n))
}

// RecordHealthSweep records a health check round. evicted is ignored for
// skipped rounds.
func (m *Metrics) RecordHealthSweep(result string, evicted int) {
	m.healthSweepsTotal.WithLabelValues(result).Inc()
	if result == SweepCompleted && evicted > 0 {
		m.healthEvicted.Add(float64(evicted))
	}
}

// RecordRequest records a completed logical request.
func (m *Metrics) RecordRequest(method, result string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, result).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRetry records a retry attempt for the given method.
func (m *Metrics) RecordRetry(method string) {
	m.requestRetries.WithLabelValues(method).Inc()
}

// RecordMutationWait records how long a mutating request waited for the
// mutation permit.
func (m *Metrics) RecordMutationWait(d time.Duration) {
	m.mutationWait.Observe(d.Seconds())
}

// SetQueueDepth records the dispatcher backlog.
func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// RecordStreamStart records a stream start attempt.
func (m *Metrics) RecordStreamStart(kind string, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	m.streamStarts.WithLabelValues(kind, result).Inc()
}

// SetStreamActive records the number of active subscriptions of a kind.
func (m *Metrics) SetStreamActive(kind string, n int) {
	m.streamActive.WithLabelValues(kind).Set(float64(n))
}

// RecordStreamMessage records one delivered stream message.
func (m *Metrics) RecordStreamMessage(kind string) {
	m.streamMessages.WithLabelValues(kind).Inc()
}

// RecordStreamDropped records one malformed stream message that was dropped.
func (m *Metrics) RecordStreamDropped(kind string) {
	m.streamDropped.WithLabelValues(kind).Inc()
}

// SetBuildInfo sets the build information metric.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
