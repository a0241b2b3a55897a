// Package client composes the full resilient streaming pipeline: a
// Transport opens an attempt against the downstream API, the wire reader
// and stream decoder turn its byte stream into domain messages, and the
// resilience layer (circuit breaker, rate limiter, bulkhead, retry
// policy, inactivity watchdog) wraps every attempt.
//
// Callers receive a channel of stream.Message that always ends with
// exactly one terminal — Complete or Failed — before it closes.
package client
