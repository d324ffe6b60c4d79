package health

import (
	"context"
	"fmt"
)

// CorePath is the path CoreCheck requests from the core.
const CorePath = "/version"

// Getter performs a single GET against the core.
type Getter interface {
	Get(ctx context.Context, path string) (string, error)
}

// CoreCheck reports whether the core answers GET /version with a 2xx.
func CoreCheck(g Getter) HealthCheck {
	return NewHealthCheckFunc("core", func(ctx context.Context) error {
		if _, err := g.Get(ctx, CorePath); err != nil {
			return fmt.Errorf("core not reachable: %w", err)
		}
		return nil
	})
}

// QueueCheck fails when the dispatcher backlog has reached capacity.
func QueueCheck(pending func() int, capacity int) HealthCheck {
	return NewHealthCheckFunc("dispatcher", func(context.Context) error {
		if n := pending(); capacity > 0 && n >= capacity {
			return fmt.Errorf("dispatcher queue full: %d/%d", n, capacity)
		}
		return nil
	})
}
