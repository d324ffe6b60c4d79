package forwarder

import (
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardError(t *testing.T) {
	t.Parallel()

	refused := os.NewSyscallError("connect", syscall.ECONNREFUSED)
	pipe := os.NewSyscallError("write", syscall.EPIPE)

	tests := []struct {
		name     string
		err      *ForwardError
		wantMsg  string
		notReady bool
	}{
		{
			name:     "acquire not ready",
			err:      &ForwardError{Op: OpAcquire, Cause: refused},
			wantMsg:  "acquire connection failed: connect: connection refused",
			notReady: true,
		},
		{
			name:    "exchange",
			err:     &ForwardError{Op: OpExchange, Cause: pipe},
			wantMsg: "IPC request failed: write: broken pipe",
		},
		{
			name:    "gate",
			err:     &ForwardError{Op: OpGate, Cause: errors.New("ctx")},
			wantMsg: "acquire mutation lock failed: ctx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.Equal(t, tt.notReady, tt.err.NotReady())
			assert.ErrorIs(t, tt.err, tt.err.Cause)
			assert.ErrorIs(t, tt.err, &ForwardError{})
		})
	}
}

func TestIsNotReady_PlainError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotReady(syscall.ENOENT))
	assert.False(t, IsNotReady(errors.New("boom")))
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	err := &StatusError{StatusCode: 500}
	assert.EqualError(t, err, "HTTP 500")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}
