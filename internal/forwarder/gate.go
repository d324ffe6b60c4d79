package forwarder

import (
	"context"
	"net/http"

	"golang.org/x/sync/semaphore"
)

// MutationGate admits at most one configuration-mutating request at a
// time. Waiters are not guaranteed FIFO order.
type MutationGate struct {
	sem *semaphore.Weighted
}

// NewMutationGate creates a new single-permit gate.
func NewMutationGate() *MutationGate {
	return &MutationGate{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the permit is held or ctx is done.
func (g *MutationGate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// TryAcquire takes the permit if it is free.
func (g *MutationGate) TryAcquire() bool {
	return g.sem.TryAcquire(1)
}

// Release returns the permit.
func (g *MutationGate) Release() {
	g.sem.Release(1)
}

// IsMutating reports whether method changes core configuration and must
// pass the gate. Only PUT does.
func IsMutating(method string) bool {
	return method == http.MethodPut
}
