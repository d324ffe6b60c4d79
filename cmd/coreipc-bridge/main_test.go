package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/coreipc/internal/bridge"
	"github.com/vyrodovalexey/coreipc/internal/config"
	"github.com/vyrodovalexey/coreipc/internal/coretest"
	"github.com/vyrodovalexey/coreipc/internal/hub"
	"github.com/vyrodovalexey/coreipc/internal/observability"
	"github.com/vyrodovalexey/coreipc/internal/retry"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		envValue string
		setEnv   bool
		expected string
	}{
		{
			name:     "returns default when env not set",
			key:      "COREIPC_TEST_NOTSET",
			expected: "default-value",
		},
		{
			name:     "returns env value when set",
			key:      "COREIPC_TEST_SET",
			envValue: "env-value",
			setEnv:   true,
			expected: "env-value",
		},
		{
			name:     "returns default when env is empty string",
			key:      "COREIPC_TEST_EMPTY",
			setEnv:   true,
			expected: "default-value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.expected, getEnvOrDefault(tt.key, "default-value"))
		})
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Parallel()

	t.Run("empty path uses defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := loadAndValidateConfig("")
		require.NoError(t, err)
		assert.Equal(t, config.DefaultPoolMaxSize, cfg.Spec.Pool.MaxSize)
		assert.Equal(t, config.DefaultLogsPath, cfg.Spec.Streams.LogsPath)
	})

	t.Run("file is loaded", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bridge.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
apiVersion: coreipc/v1
kind: Bridge
metadata:
  name: desktop
spec:
  pool:
    maxSize: 8
`), 0o600))

		cfg, err := loadAndValidateConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "desktop", cfg.Metadata.Name)
		assert.Equal(t, 8, cfg.Spec.Pool.MaxSize)
	})

	t.Run("example config is valid", func(t *testing.T) {
		t.Parallel()

		cfg, err := loadAndValidateConfig(filepath.Join("..", "..", "configs", "bridge.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "desktop", cfg.Metadata.Name)
		assert.Equal(t, config.DefaultTrafficPath, cfg.Spec.Streams.TrafficPath)
		assert.False(t, cfg.Spec.Metrics.Enabled)
	})

	t.Run("missing file fails", func(t *testing.T) {
		t.Parallel()

		_, err := loadAndValidateConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid config fails", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bridge.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
apiVersion: coreipc/v1
kind: Gateway
metadata:
  name: desktop
`), 0o600))

		_, err := loadAndValidateConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kind")
	})
}

func TestHubConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Spec.Endpoint = "/tmp/core.sock"
	cfg.Spec.Forwarder.BackoffType = config.BackoffExponential
	cfg.Spec.Dispatcher.Workers = 3
	cfg.Spec.Streams.Breaker.MaxFailures = 7

	hc := hubConfig(cfg)

	assert.Equal(t, "/tmp/core.sock", hc.Endpoint)
	assert.Equal(t, config.DefaultPoolMaxSize, hc.PoolMaxSize)
	assert.Equal(t, config.DefaultIdleTimeout, hc.IdleTimeout)
	assert.Equal(t, config.DefaultHealthCheckInterval, hc.HealthCheckInterval)
	assert.Equal(t, config.DefaultMaxRetries, hc.MaxRetries)
	assert.IsType(t, &retry.ExponentialBackoff{}, hc.Backoff)
	assert.Equal(t, 3, hc.Dispatcher.Workers)
	assert.Equal(t, config.DefaultQueueSize, hc.Dispatcher.QueueSize)
	assert.Equal(t, "/traffic", hc.TrafficPath)
	assert.Equal(t, "/logs?level=info", hc.LogsPath)
	assert.Equal(t, uint32(7), hc.Breaker.MaxFailures)
	assert.Equal(t, config.DefaultBreakerOpenTimeout, hc.Breaker.OpenTimeout)
}

func TestHubConfig_ConstantBackoff(t *testing.T) {
	t.Parallel()

	hc := hubConfig(config.DefaultConfig())

	require.IsType(t, &retry.ConstantBackoff{}, hc.Backoff)
	assert.Equal(t, 200*time.Millisecond, hc.Backoff.Next(1))
}

// Not parallel: modifies package-level exitFunc.
func TestFatalWithSync(t *testing.T) {
	var exitCode atomic.Int32
	withExitFunc(t, func(code int) { exitCode.Store(int32(code)) })

	fatalWithSync(observability.NopLogger(), "boom", observability.String("key", "value"))

	assert.Equal(t, int32(1), exitCode.Load())
}

// Not parallel: modifies package-level exitFunc.
func TestInitLogger(t *testing.T) {
	var exitCode atomic.Int32
	withExitFunc(t, func(code int) { exitCode.Store(int32(code)) })

	t.Run("flags override config", func(t *testing.T) {
		logger := initLogger(cliFlags{logLevel: "debug"}, observability.LogConfig{Level: "bogus"})
		require.NotNil(t, logger)
		assert.Equal(t, int32(0), exitCode.Load())
	})

	t.Run("invalid level exits", func(t *testing.T) {
		logger := initLogger(cliFlags{}, observability.LogConfig{Level: "bogus"})
		assert.Nil(t, logger)
		assert.Equal(t, int32(1), exitCode.Load())
	})
}

// Not parallel: modifies package-level exitFunc and installs the global
// tracer provider.
func TestInitTracer_Enabled(t *testing.T) {
	var exitCode atomic.Int32
	withExitFunc(t, func(code int) { exitCode.Store(int32(code)) })

	cfg := config.DefaultConfig()
	cfg.Spec.Tracing.Enabled = true
	cfg.Spec.Tracing.SamplingRate = 1.0

	tracer := initTracer(cfg, observability.NopLogger())
	require.NotNil(t, tracer)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	assert.Equal(t, int32(0), exitCode.Load())
}

func TestApplyReload(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, "")

	next := config.DefaultConfig()
	next.Spec.Pool.MaxSize = 4
	next.Spec.Logging.Level = "warn"
	applyReload(app, next)

	assert.Equal(t, 4, app.hub.Pool().MaxSize())
}

func TestAdminRouter(t *testing.T) {
	t.Parallel()

	core := coretest.NewServer(t)
	core.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"version":"1.0"}`)
	})
	router := newAdminRouter(newTestApp(t, core.Endpoint))

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{path: "/live", status: http.StatusOK, body: `"status"`},
		{path: "/ready", status: http.StatusOK, body: `"core"`},
		{path: "/health", status: http.StatusOK, body: `"dispatcher"`},
		{path: "/metrics", status: http.StatusOK, body: "coreipc_pool_connections"},
		{path: "/debug/pool", status: http.StatusOK, body: core.Endpoint},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestAdminRouter_CoreUnreachable(t *testing.T) {
	t.Parallel()

	router := newAdminRouter(newTestApp(t, filepath.Join(t.TempDir(), "absent.sock")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
}

func TestDebugPool(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, "/tmp/never.sock")
	router := newAdminRouter(app)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pool", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Idle     int    `json:"idle"`
		MaxSize  int    `json:"maxSize"`
		Endpoint string `json:"endpoint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, config.DefaultPoolMaxSize, stats.MaxSize)
	assert.Equal(t, "/tmp/never.sock", stats.Endpoint)
}

func newTestApp(t *testing.T, endpoint string) *application {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Spec.Endpoint = endpoint
	noRetries := 0
	cfg.Spec.Forwarder.MaxRetries = &noRetries

	logger := observability.NopLogger()
	metrics := observability.NewMetrics(cfg.Spec.Metrics.Namespace)
	metrics.InitVecMetrics()

	codec := bridge.NewCodec(strings.NewReader(""), io.Discard)
	h := hub.New(hubConfig(cfg), codec,
		hub.WithLogger(logger),
		hub.WithMetrics(metrics),
	)
	t.Cleanup(func() { _ = h.Close() })

	return &application{
		config:  cfg,
		hub:     h,
		codec:   codec,
		metrics: metrics,
		tracer:  observability.NoopTracer(),
		logger:  logger,
	}
}

func withExitFunc(t *testing.T, fn func(int)) {
	t.Helper()

	orig := exitFunc
	exitFunc = fn
	t.Cleanup(func() { exitFunc = orig })
}
