package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	name    string
	checker Checker
}

// Service coordinates health checks.
type Service struct {
	components []component
	timeout    time.Duration
}

// New creates a Service with no components. Register adds them.
func New(timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Service{timeout: timeout}
}

// Register adds a named component. A nil checker is ignored so optional parts can be passed unconditionally.
func (s *Service) Register(name string, c Checker) *Service {
	if c != nil {
		s.components = append(s.components, component{name: name, checker: c})
	}
	return s
}

// Names returns the registered component names in sorted order.
func (s *Service) Names() []string {
	names := make([]string, len(s.components))
	for i, c := range s.components {
		names[i] = c.name
	}
	sort.Strings(names)
	return names
}

// Check probes every component concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(s.components))

	var wg sync.WaitGroup
	for i, c := range s.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			if err := c.checker.HealthCheck(cctx); err != nil {
				results[i] = CheckError
				return
			}
			results[i] = CheckOK
		}()
	}
	wg.Wait()

	checks := make(map[string]CheckResult, len(s.components))
	status := Healthy
	for i, c := range s.components {
		checks[c.name] = results[i]
		if results[i] == CheckError {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}
