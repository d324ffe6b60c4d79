package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 3, cfg.Attempts())
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff.Next(1))
}

func TestConfig_Attempts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      *Config
		expected int
	}{
		{"nil config", nil, 3},
		{"zero retries", &Config{MaxRetries: 0}, 1},
		{"negative retries", &Config{MaxRetries: -4}, 1},
		{"custom", &Config{MaxRetries: 5}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.cfg.Attempts())
		})
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), &Config{MaxRetries: 2, Backoff: NewConstantBackoff(0)},
		func(context.Context, int) error {
			calls++
			return nil
		}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	var seen []int
	var retried []int

	err := Do(context.Background(), &Config{MaxRetries: 2, Backoff: NewConstantBackoff(time.Millisecond)},
		func(_ context.Context, attempt int) error {
			seen = append(seen, attempt)
			return errBoom
		}, &Options{
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				retried = append(retried, attempt)
				assert.ErrorIs(t, err, errBoom)
				assert.Equal(t, time.Millisecond, backoff)
			},
		})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ShouldRetryStops(t *testing.T) {
	t.Parallel()

	errFatal := errors.New("fatal")
	calls := 0

	err := Do(context.Background(), DefaultConfig(),
		func(context.Context, int) error {
			calls++
			return errFatal
		}, &Options{
			ShouldRetry: func(int, error) bool { return false },
			OnRetry: func(int, error, time.Duration) {
				t.Error("OnRetry must not run when ShouldRetry refuses")
			},
		})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	t.Parallel()

	err := Do(context.Background(), &Config{MaxRetries: 2, Backoff: NewConstantBackoff(0)},
		func(_ context.Context, attempt int) error {
			if attempt < 2 {
				return errors.New("transient")
			}
			return nil
		}, nil)

	assert.NoError(t, err)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, &Config{MaxRetries: 2, Backoff: NewConstantBackoff(time.Hour)},
		func(context.Context, int) error {
			calls++
			return errors.New("fail")
		}, &Options{
			OnRetry: func(int, error, time.Duration) { cancel() },
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextAlreadyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, nil, func(context.Context, int) error {
		t.Error("fn must not run")
		return nil
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_WaitsBackoff(t *testing.T) {
	t.Parallel()

	start := time.Now()
	_ = Do(context.Background(), &Config{MaxRetries: 2, Backoff: NewConstantBackoff(20 * time.Millisecond)},
		func(context.Context, int) error { return errors.New("x") }, nil)

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
