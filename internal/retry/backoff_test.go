package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstantBackoff(t *testing.T) {
	t.Parallel()

	b := NewConstantBackoff(200 * time.Millisecond)
	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 200*time.Millisecond, b.Next(attempt))
	}

	assert.Equal(t, time.Duration(0), NewConstantBackoff(-time.Second).Next(1))
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoff(100*time.Millisecond, time.Second, 0)

	assert.Equal(t, 100*time.Millisecond, b.Next(0))
	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 400*time.Millisecond, b.Next(3))
	assert.Equal(t, time.Second, b.Next(10))
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoff(100*time.Millisecond, time.Second, 5)
	for i := 0; i < 20; i++ {
		d := b.Next(1)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestNewBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind BackoffType
		want any
	}{
		{"constant", BackoffTypeConstant, &ConstantBackoff{}},
		{"exponential", BackoffTypeExponential, &ExponentialBackoff{}},
		{"empty", "", &ConstantBackoff{}},
		{"unknown", "fibonacci", &ConstantBackoff{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.IsType(t, tt.want, NewBackoff(tt.kind, 200*time.Millisecond, time.Second))
		})
	}
}
