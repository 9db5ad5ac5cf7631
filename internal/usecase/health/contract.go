package health

import "context"

// Checker probes one component. Database, cache, embedding and generation clients all fit.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a plain function, e.g. a store's Ping, to Checker.
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
