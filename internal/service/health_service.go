package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthCheck is one named dependency check
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthService runs readiness checks against the API's dependencies
type HealthService struct {
	checks  []HealthCheck
	timeout time.Duration
}

// NewHealthService creates a health service. Each check gets its own timeout.
func NewHealthService(timeout time.Duration, checks ...HealthCheck) *HealthService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthService{checks: checks, timeout: timeout}
}

// Ready runs every check concurrently and returns a status per dependency.
// The error is non-nil when at least one check failed; every check still reports.
func (s *HealthService) Ready(ctx context.Context) (map[string]string, error) {
	var (
		mu     sync.Mutex
		status = make(map[string]string, len(s.checks))
		g      errgroup.Group
	)

	for _, hc := range s.checks {
		hc := hc
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			err := hc.Check(checkCtx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status[hc.Name] = "down"
				return fmt.Errorf("%s: %w", hc.Name, err)
			}
			status[hc.Name] = "up"
			return nil
		})
	}

	err := g.Wait()
	return status, err
}
