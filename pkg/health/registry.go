package health

import (
	"context"
	"sync"
)

// Registry aggregates the probes behind the readiness endpoint: one per
// enabled payment provider, plus the event broker when configured.
type Registry struct {
	checkers []Checker
}

func NewRegistry(checkers ...Checker) *Registry {
	return &Registry{checkers: checkers}
}

// CheckResult is one named probe outcome.
type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// ReadinessResponse aggregates all probes. Status is down if any probe is.
type ReadinessResponse struct {
	Status Status        `json:"status"`
	Checks []CheckResult `json:"checks,omitempty"`
}

// CheckAll probes every dependency concurrently. Provider probes each take
// a network round trip, so running them sequentially would stack timeouts.
func (r *Registry) CheckAll(ctx context.Context) ReadinessResponse {
	if len(r.checkers) == 0 {
		return ReadinessResponse{Status: StatusUp}
	}

	results := make([]CheckResult, len(r.checkers))

	var wg sync.WaitGroup
	for i, checker := range r.checkers {
		i, checker := i, checker
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := checker.Check(ctx)
			results[i] = CheckResult{
				Name:    checker.Name(),
				Status:  res.Status,
				Message: res.Message,
			}
		}()
	}
	wg.Wait()

	resp := ReadinessResponse{Status: StatusUp, Checks: results}
	for _, res := range results {
		if res.Status == StatusDown {
			resp.Status = StatusDown
			break
		}
	}
	return resp
}
