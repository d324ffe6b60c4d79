package forwarder

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/coreipc/internal/observability"
	"github.com/vyrodovalexey/coreipc/internal/retry"
)

// Body preview limits for debug logging.
const (
	previewThreshold = 200
	previewRunes     = 100
)

// ConnPool is the subset of pool.ConnectionPool the forwarder uses.
type ConnPool interface {
	Acquire(ctx context.Context) (net.Conn, error)
	Release(conn net.Conn)
	Flush() int
}

// Forwarder forwards requests to the core.
type Forwarder struct {
	pool       ConnPool
	gate       *MutationGate
	maxRetries int
	backoff    retry.Backoff
	logger     observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
}

// Option is a functional option for configuring the forwarder.
type Option func(*Forwarder)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(f *Forwarder) {
		if n < 0 {
			n = 0
		}
		f.maxRetries = n
	}
}

// WithBackoff sets the wait strategy between attempts.
func WithBackoff(b retry.Backoff) Option {
	return func(f *Forwarder) {
		f.backoff = b
	}
}

// WithGate sets the mutation gate. Forwarders sharing a pool should share
// a gate.
func WithGate(g *MutationGate) Option {
	return func(f *Forwarder) {
		f.gate = g
	}
}

// WithLogger sets the logger for the forwarder.
func WithLogger(logger observability.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics sink for the forwarder.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// WithTracer sets the tracer for the forwarder.
func WithTracer(t *observability.Tracer) Option {
	return func(f *Forwarder) {
		f.tracer = t
	}
}

// New creates a new forwarder over p.
func New(p ConnPool, opts ...Option) *Forwarder {
	f := &Forwarder{
		pool:       p,
		maxRetries: retry.DefaultMaxRetries,
		backoff:    retry.NewConstantBackoff(retry.DefaultBackoff),
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.gate == nil {
		f.gate = NewMutationGate()
	}
	if f.tracer == nil {
		f.tracer = observability.NoopTracer()
	}
	f.logger = f.logger.With(observability.String("component", "forwarder"))

	return f
}

// Gate returns the mutation gate.
func (f *Forwarder) Gate() *MutationGate {
	return f.gate
}

// Forward sends method and path (with an optional JSON body) to the core
// and returns its response. PUT requests hold the mutation gate across
// all attempts. Transient transport failures are retried up to the
// configured limit, flushing the pool before each retry.
func (f *Forwarder) Forward(ctx context.Context, method, path string, body *string) (Result, error) {
	method = strings.ToUpper(method)
	start := time.Now()

	ctx, span := f.tracer.StartSpan(ctx, "coreipc.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	logger := f.logger.WithContext(ctx).With(
		observability.String("method", method),
		observability.String("path", path),
	)

	if IsMutating(method) {
		waitStart := time.Now()
		if err := f.gate.Acquire(ctx); err != nil {
			fe := &ForwardError{Op: OpGate, Method: method, Path: path, Cause: err}
			f.finish(span, logger, method, start, fe)
			return Result{}, fe
		}
		defer f.gate.Release()

		if f.metrics != nil {
			f.metrics.RecordMutationWait(time.Since(waitStart))
		}
		logger.Debug("mutation lock acquired")
	}

	var (
		result   Result
		attempts int
	)

	cfg := &retry.Config{MaxRetries: f.maxRetries, Backoff: f.backoff}
	err := retry.Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		attempts = attempt
		res, err := f.attempt(ctx, method, path, body)
		if err != nil {
			return err
		}
		result = res
		return nil
	}, &retry.Options{
		ShouldRetry: func(attempt int, err error) bool {
			var fe *ForwardError
			if errors.As(err, &fe) && fe.Op != OpExchange {
				return false
			}
			return retry.ShouldRetry(attempt, f.maxRetries, err)
		},
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			flushed := f.pool.Flush()
			logger.Warn("request failed, flushing pool and retrying",
				observability.Int("attempt", attempt),
				observability.Int("flushed", flushed),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
			if f.metrics != nil {
				f.metrics.RecordRetry(method)
			}
			span.AddEvent("retry", trace.WithAttributes(attribute.Int("attempt", attempt)))
		},
	})

	if err != nil {
		var fe *ForwardError
		if !errors.As(err, &fe) {
			fe = &ForwardError{Op: OpExchange, Method: method, Path: path, Cause: err}
		}
		fe.Attempts = attempts
		f.finish(span, logger, method, start, fe)
		return Result{}, fe
	}

	span.SetAttributes(
		attribute.Int("http.response.status_code", result.StatusCode),
		attribute.Int("coreipc.attempts", attempts),
	)
	logBody(logger, result)
	f.finish(span, logger, method, start, nil)

	return result, nil
}

// attempt performs one acquire and exchange.
func (f *Forwarder) attempt(ctx context.Context, method, path string, body *string) (Result, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return Result{}, &ForwardError{Op: OpAcquire, Method: method, Path: path, Cause: err}
	}

	req, err := newRequest(ctx, method, path, body)
	if err != nil {
		f.pool.Release(conn)
		return Result{}, &ForwardError{Op: OpExchange, Method: method, Path: path, Cause: err}
	}

	res, reusable, err := exchange(ctx, conn, req)
	if err != nil {
		_ = conn.Close()
		return Result{}, &ForwardError{Op: OpExchange, Method: method, Path: path, Cause: err}
	}

	if reusable {
		f.pool.Release(conn)
	} else {
		_ = conn.Close()
	}

	return res, nil
}

// finish records the outcome of a logical request.
func (f *Forwarder) finish(span trace.Span, logger observability.Logger, method string, start time.Time, fe *ForwardError) {
	result := observability.ResultSuccess

	if fe != nil {
		span.RecordError(fe)
		span.SetStatus(codes.Error, fe.Op)

		if fe.NotReady() {
			result = observability.ResultNotReady
			logger.Debug("core not ready", observability.String("op", fe.Op), observability.Error(fe.Cause))
		} else {
			result = observability.ResultFailure
			logger.Error("request failed",
				observability.String("op", fe.Op),
				observability.Int("attempts", fe.Attempts),
				observability.Error(fe.Cause),
			)
		}
	}

	if f.metrics != nil {
		f.metrics.RecordRequest(method, result, time.Since(start))
	}
}

// logBody logs the response body at debug, truncating long bodies.
func logBody(logger observability.Logger, res Result) {
	if len(res.Body) <= previewThreshold {
		logger.Debug("response received",
			observability.Int("status", res.StatusCode),
			observability.String("body", res.Body),
		)
		return
	}

	preview := res.Body
	if utf8.RuneCountInString(preview) > previewRunes {
		preview = string([]rune(preview)[:previewRunes])
	}
	logger.Debug("response received",
		observability.Int("status", res.StatusCode),
		observability.String("body_preview", preview),
		observability.Int("body_bytes", len(res.Body)),
	)
}

// Get issues a single GET and returns the body of a 2xx response. Other
// statuses yield a *StatusError.
func (f *Forwarder) Get(ctx context.Context, path string) (string, error) {
	res, err := f.attempt(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{StatusCode: res.StatusCode, Body: res.Body}
	}
	return res.Body, nil
}

// WaitReady polls GET path at the given interval until it succeeds or ctx
// is done.
func (f *Forwarder) WaitReady(ctx context.Context, path string, interval time.Duration) error {
	if interval <= 0 {
		interval = retry.DefaultBackoff
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		_, err := f.Get(ctx, path)
		if err == nil {
			f.logger.Info("core is ready", observability.String("path", path))
			return nil
		}
		f.logger.Debug("waiting for core", observability.String("path", path), observability.Error(err))
	}
}
