// Package resilience provides the failure-handling patterns that wrap every
// network attempt against a streaming model API.
//
// # Patterns
//
//   - Circuit Breaker: fails fast when the downstream dependency is
//     persistently failing and automatically probes for recovery.
//
//   - Retry: decides, per attempt, whether an error warrants another try
//     and computes an exponential backoff delay with symmetric jitter.
//
//   - Rate Limiter: absorbs HTTP 429 responses by deferring subsequent
//     calls until a server-supplied (or default) deadline passes, draining
//     deferred callers in FIFO order.
//
//   - Bulkhead: caps the number of concurrently open streams.
//
//   - Inactivity Timer: watches a live stream for silence so a stalled
//     connection is surfaced as a timeout instead of hanging forever.
//
// # Errors
//
// The package also defines the shared failure taxonomy. Every failure that
// reaches a caller is an *Error carrying a Kind; the Kind decides
// retryability and supplies a sanitized, user-presentable message so raw
// transport text never leaks into UI surfaces.
//
// Shared instances are an intentional design point: one CircuitBreaker and
// one RateLimiter may be passed to many executors so independent callers
// observe a dependency's health collectively. All shared components are
// safe for concurrent use.
package resilience
