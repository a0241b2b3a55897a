// Package stream reassembles wire protocol events into domain messages.
//
// The Decoder consumes wire.Events one at a time and emits Messages as
// early as their contents are fully known: text fragments are forwarded
// immediately for progressive rendering, while tool-call argument JSON is
// accumulated per block index and parsed once the block closes.
//
// Malformed input never crashes a stream. Duplicate block starts, orphan
// deltas, and unparsable tool JSON are logged and dropped; decoding
// continues with the remaining blocks. A Decoder is per-request state and
// is not safe for concurrent use.
package stream
