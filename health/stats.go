package health

import (
	"context"
	"fmt"

	"github.com/streamgate-io/streamgate/metrics"
)

// StatsCheckerConfig configures the success-rate thresholds.
type StatsCheckerConfig struct {
	// DegradedBelow is the success-rate percentage under which the
	// dependency is reported degraded.
	// Default: 95.0
	DegradedBelow float64

	// UnhealthyBelow is the success-rate percentage under which the
	// dependency is reported unhealthy.
	// Default: 50.0
	UnhealthyBelow float64

	// MinRequests is the completed-request count required before the
	// success rate is meaningful. Below it the checker reports healthy.
	// Default: 10
	MinRequests int64
}

// StatsChecker reports health from the collector's aggregate statistics:
// a falling success rate marks the dependency degraded, then unhealthy.
type StatsChecker struct {
	name      string
	config    StatsCheckerConfig
	collector *metrics.Collector
}

// NewStatsChecker creates a checker over collector.
func NewStatsChecker(name string, config StatsCheckerConfig, collector *metrics.Collector) *StatsChecker {
	if config.DegradedBelow <= 0 {
		config.DegradedBelow = 95.0
	}
	if config.UnhealthyBelow <= 0 {
		config.UnhealthyBelow = 50.0
	}
	if config.MinRequests <= 0 {
		config.MinRequests = 10
	}
	return &StatsChecker{name: name, config: config, collector: collector}
}

// Name returns the checker name.
func (c *StatsChecker) Name() string { return c.name }

// Check maps the current success rate to a health result.
func (c *StatsChecker) Check(ctx context.Context) Result {
	snap := c.collector.Stats()
	details := map[string]any{
		"total_requests": snap.TotalRequests,
		"success_rate":   snap.SuccessRate,
		"p95_latency":    snap.P95Latency,
	}

	completed := snap.SuccessfulRequests + snap.FailedRequests
	if completed < c.config.MinRequests {
		return Healthy("insufficient traffic to judge").WithDetails(details)
	}

	switch {
	case snap.SuccessRate < c.config.UnhealthyBelow:
		return Unhealthy(fmt.Sprintf("success rate %.1f%%", snap.SuccessRate)).WithDetails(details)
	case snap.SuccessRate < c.config.DegradedBelow:
		return Degraded(fmt.Sprintf("success rate %.1f%%", snap.SuccessRate)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("success rate %.1f%%", snap.SuccessRate)).WithDetails(details)
	}
}
