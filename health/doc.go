// Package health derives dependency health from the runtime state of the
// resilience layer: circuit-breaker state and collector statistics. An
// Aggregator combines individual checkers into one report suitable for a
// readiness endpoint or a periodic log line.
package health
