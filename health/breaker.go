package health

import (
	"context"
	"fmt"

	"github.com/streamgate-io/streamgate/resilience"
)

// BreakerChecker reports the health of a downstream dependency from its
// circuit-breaker state: closed is healthy, half-open is degraded (probing
// after an outage), open is unhealthy.
type BreakerChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker over breaker.
func NewBreakerChecker(name string, breaker *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: breaker}
}

// Name returns the checker name.
func (c *BreakerChecker) Name() string { return c.name }

// Check maps the breaker state to a health result.
func (c *BreakerChecker) Check(ctx context.Context) Result {
	m := c.breaker.Metrics()
	details := map[string]any{
		"state":    m.State.String(),
		"failures": m.Failures,
	}
	if !m.LastFailure.IsZero() {
		details["last_failure"] = m.LastFailure
	}

	switch m.State {
	case resilience.StateClosed:
		return Healthy("circuit closed").WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit probing for recovery").WithDetails(details)
	default:
		return Unhealthy(fmt.Sprintf("circuit open after %d failures", m.Failures)).WithDetails(details)
	}
}
