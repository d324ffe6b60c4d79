package forwarder

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMutating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		want   bool
	}{
		{http.MethodPut, true},
		{http.MethodGet, false},
		{http.MethodPost, false},
		{http.MethodPatch, false},
		{http.MethodDelete, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMutating(tt.method), tt.method)
	}
}

func TestMutationGate_SinglePermit(t *testing.T) {
	t.Parallel()

	g := NewMutationGate()

	require.True(t, g.TryAcquire())
	assert.False(t, g.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Acquire(ctx), context.DeadlineExceeded)

	g.Release()
	require.NoError(t, g.Acquire(context.Background()))
	g.Release()
}

func TestMutationGate_WaiterProceedsAfterRelease(t *testing.T) {
	t.Parallel()

	g := NewMutationGate()
	require.True(t, g.TryAcquire())

	acquired := make(chan struct{})
	go func() {
		if err := g.Acquire(context.Background()); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired while permit held")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter did not acquire after release")
	}
	g.Release()
}
