package stream

import "encoding/json"

// Message is a sealed interface over everything a decoded stream can
// yield. The unexported marker method prevents external implementations,
// so a type switch over the variants below is exhaustive.
type Message interface {
	message()
}

// TextDelta is an incremental text fragment, emitted as soon as it
// arrives so callers can render progressively.
type TextDelta struct {
	Text string
}

func (TextDelta) message() {}

// ToolInvocation is a fully-assembled tool call with parsed arguments.
// It is emitted exactly once, when the tool block closes.
type ToolInvocation struct {
	Name      string
	Arguments json.RawMessage
}

func (ToolInvocation) message() {}

// UnknownToolInvocation is a tool call whose name has no dispatch entry.
// The arguments are still parsed; the caller decides what to do with it.
type UnknownToolInvocation struct {
	Name      string
	Arguments json.RawMessage
}

func (UnknownToolInvocation) message() {}

// Complete terminates a successful stream. Emitted exactly once.
type Complete struct {
	StopReason string
}

func (Complete) message() {}

// Failed terminates a broken stream. Cause is a classified error whose
// message is safe to show; emitted exactly once.
type Failed struct {
	Cause error
}

func (Failed) message() {}

// Interface compliance checks.
var (
	_ Message = TextDelta{}
	_ Message = ToolInvocation{}
	_ Message = UnknownToolInvocation{}
	_ Message = Complete{}
	_ Message = Failed{}
)
