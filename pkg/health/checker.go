package health

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single probe. Provider sandboxes are slow; anything
// past this is treated as down rather than blocking the readiness endpoint.
const DefaultTimeout = 5 * time.Second

// Status of a probed component.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Result is the outcome of a single probe.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Up reports a healthy component.
func Up() Result {
	return Result{Status: StatusUp}
}

// Down reports an unhealthy component with a reason.
func Down(format string, args ...any) Result {
	return Result{Status: StatusDown, Message: fmt.Sprintf(format, args...)}
}

// Checker probes one dependency the gateway needs to take payments, such as
// a provider API or the event broker.
type Checker interface {
	// Name identifies the dependency in the readiness response.
	Name() string
	// Check probes the dependency. It must honor ctx cancellation.
	Check(ctx context.Context) Result
}
