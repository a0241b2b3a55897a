// Package wire defines the raw protocol events emitted by a streaming
// model API and a reader that assembles them from an SSE byte stream.
//
// Events form a closed union: a sealed Event interface with one struct per
// protocol event type. Consumers switch over the concrete types; the
// unexported marker method prevents external implementations, so the set of
// variants is fixed at compile time.
//
// The Reader is transport-agnostic beyond the SSE framing itself: it takes
// any io.Reader producing "event:"/"data:" prefixed lines with blank-line
// terminated frames, and yields one Event per semantic frame.
package wire
