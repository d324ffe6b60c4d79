package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(cfg))

	s := cfg.Spec
	assert.Equal(t, 300, s.Pool.MaxSize)
	assert.Equal(t, 500*time.Millisecond, s.Pool.IdleTimeout.Duration())
	assert.Equal(t, 30*time.Second, s.Pool.HealthCheckInterval.Duration())
	assert.Equal(t, 2, s.Forwarder.Retries())
	assert.Equal(t, 200*time.Millisecond, s.Forwarder.RetryBackoff.Duration())
	assert.Equal(t, BackoffConstant, s.Forwarder.BackoffType)
	assert.Equal(t, 0, s.Dispatcher.Workers)
	assert.Equal(t, 1024, s.Dispatcher.QueueSize)
	assert.Equal(t, "/traffic", s.Streams.TrafficPath)
	assert.Equal(t, "/logs?level=info", s.Streams.LogsPath)
	assert.Equal(t, 5, s.Streams.Breaker.MaxFailures)
	assert.Equal(t, 10*time.Second, s.Streams.Breaker.OpenTimeout.Duration())
	assert.Equal(t, "info", s.Logging.Level)
	assert.Equal(t, "stderr", s.Logging.Output)
	assert.False(t, s.Metrics.Enabled)
	assert.False(t, s.Tracing.Enabled)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	zero := 0
	cfg := &BridgeConfig{Spec: BridgeSpec{
		Pool:      PoolConfig{MaxSize: 10},
		Forwarder: ForwarderConfig{MaxRetries: &zero},
		Logging:   LoggingConfig{Level: "debug"},
	}}
	cfg.ApplyDefaults()

	assert.Equal(t, 10, cfg.Spec.Pool.MaxSize)
	assert.Equal(t, 0, cfg.Spec.Forwarder.Retries(), "zero retries is explicit")
	assert.Equal(t, "debug", cfg.Spec.Logging.Level)
	assert.Equal(t, DefaultIdleTimeout, cfg.Spec.Pool.IdleTimeout.Duration())
}

func TestForwarderConfig_RetriesNil(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultMaxRetries, ForwarderConfig{}.Retries())
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "milliseconds", input: `d: 500ms`, want: 500 * time.Millisecond},
		{name: "compound", input: `d: 1m30s`, want: 90 * time.Second},
		{name: "empty", input: `d: ""`, want: 0},
		{name: "invalid", input: `d: soon`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out struct {
				D Duration `yaml:"d"`
			}
			err := yaml.Unmarshal([]byte(tt.input), &out)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.D.Duration())
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"250ms"`), &d))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Zero(t, d)

	out, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))

	y, err := Duration(time.Minute).MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m0s", y)
}
