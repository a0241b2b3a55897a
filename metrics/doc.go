// Package metrics provides an in-process collector for streaming request
// telemetry: a live broadcast event feed plus a continuously updated
// aggregate snapshot.
//
// Record methods are non-blocking and cheap; when the collector is disabled
// they return after a single boolean check. Aggregated counters are held
// separately from the bounded latency sample ring used for percentile
// computation, so counters never lose history while old samples are evicted.
//
// The event feed fans out to subscribers over buffered channels. A slow or
// absent subscriber never blocks recording: when a subscriber's buffer is
// full the event is dropped for that subscriber. This buffer-and-drop policy
// is deliberate; the feed is observability plumbing, not a durable queue.
package metrics
