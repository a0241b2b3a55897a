package metrics

import "time"

// EventType identifies a collector event.
type EventType int

const (
	// EventRequestStarted marks the beginning of a logical request.
	EventRequestStarted EventType = iota
	// EventRequestSucceeded marks a request that completed normally.
	EventRequestSucceeded
	// EventRequestFailed marks a request that exhausted its attempts.
	EventRequestFailed
	// EventRetryScheduled marks a retry attempt being scheduled.
	EventRetryScheduled
	// EventRateLimited marks a 429 observation.
	EventRateLimited
	// EventCircuitTransition marks a circuit breaker state change.
	EventCircuitTransition
	// EventStreamInactivity marks a stream that went silent past the
	// inactivity window.
	EventStreamInactivity
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventRequestStarted:
		return "request_started"
	case EventRequestSucceeded:
		return "request_succeeded"
	case EventRequestFailed:
		return "request_failed"
	case EventRetryScheduled:
		return "retry_scheduled"
	case EventRateLimited:
		return "rate_limited"
	case EventCircuitTransition:
		return "circuit_transition"
	case EventStreamInactivity:
		return "stream_inactivity"
	default:
		return "unknown"
	}
}

// Event is a timestamped, immutable record of one collector observation.
// Fields beyond Type, RequestID and Time are populated per event type.
type Event struct {
	Type      EventType
	RequestID string
	Time      time.Time

	// Request outcome
	Latency time.Duration
	Retries int
	Cause   string // sanitized failure cause

	// Retry scheduling
	Attempt int
	Delay   time.Duration

	// Circuit transitions
	FromState string
	ToState   string
	Failures  int
}
