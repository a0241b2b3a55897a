// Package observe provides telemetry for streaming model requests: tracing,
// OpenTelemetry metrics, and structured logging behind a single Observer.
//
// The package wraps the OpenTelemetry SDK so the rest of the module never
// touches provider setup. Construct an Observer at the composition root and
// pass it (or its parts) to the components that need it; library code never
// reads a process-wide default.
//
// The Bridge subscribes to a metrics.Collector event feed and republishes
// request outcomes as OpenTelemetry instruments, so the in-process aggregate
// snapshot and the exported telemetry stay consistent without double
// instrumentation on the request hot path.
package observe
