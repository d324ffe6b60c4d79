package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLogConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{
			name:   "default config",
			config: DefaultLogConfig(),
		},
		{
			name:   "console format",
			config: LogConfig{Level: "debug", Format: "console"},
		},
		{
			name:   "stdout output",
			config: LogConfig{Level: "warn", Format: "json", Output: "stdout"},
		},
		{
			name:   "empty level defaults to info",
			config: LogConfig{},
		},
		{
			name:   "trace maps to debug",
			config: LogConfig{Level: "trace"},
		},
		{
			name:    "invalid level",
			config:  LogConfig{Level: "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"trace", zapcore.DebugLevel},
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestZapLogger_SetLevelPropagatesToChildren(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger(LogConfig{Level: "error"})
	require.NoError(t, err)

	child := logger.With(String("component", "pool"))
	zl := child.(*zapLogger)
	assert.False(t, zl.logger.Core().Enabled(zapcore.InfoLevel))

	setter, ok := logger.(LevelSetter)
	require.True(t, ok)
	require.NoError(t, setter.SetLevel("debug"))

	assert.True(t, zl.logger.Core().Enabled(zapcore.DebugLevel))
	assert.Error(t, setter.SetLevel("nope"))
}

func TestZapLogger_WithContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerFromZap(zap.New(core))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithTraceID(ctx, "trace-1")
	ctx = ContextWithSpanID(ctx, "span-1")

	logger.WithContext(ctx).Info("forwarded")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "span-1", fields["span_id"])
}

func TestZapLogger_WithContextEmpty(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "abc")
	ctx = ContextWithTraceID(ctx, "def")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
	assert.Equal(t, "def", TraceIDFromContext(ctx))
}

func TestGlobalLogger(t *testing.T) {
	// Not parallel: mutates the global logger.
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	nop := NopLogger()
	SetGlobalLogger(nop)
	assert.Same(t, nop, L())
}
