package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/streamgate-io/streamgate/observe"
	"github.com/streamgate-io/streamgate/resilience"
	"github.com/streamgate-io/streamgate/wire"
)

// accumulator holds the in-flight state of one indexed content block.
type accumulator struct {
	kind     wire.BlockKind
	toolName string
	buf      strings.Builder
}

// Decoder converts a sequence of wire events into domain messages,
// preserving arrival order and emitting each message exactly once.
//
// A Decoder serves a single request attempt. It holds per-request state
// and performs no locking; create a fresh one (or call Reset) per attempt.
type Decoder struct {
	dispatch Dispatch
	logger   observe.Logger

	blocks     map[int]*accumulator
	stopReason string
	done       bool
}

// NewDecoder creates a decoder with the given tool dispatch table. A nil
// logger disables decoder logging.
func NewDecoder(dispatch Dispatch, logger observe.Logger) *Decoder {
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	return &Decoder{
		dispatch: dispatch,
		logger:   logger,
		blocks:   make(map[int]*accumulator),
	}
}

// Feed consumes one wire event and returns the domain messages it
// completes, in order. Most events complete zero or one message. After a
// terminal message has been emitted, further events are dropped until
// Reset is called.
func (d *Decoder) Feed(ev wire.Event) []Message {
	if d.done {
		return nil
	}

	switch ev := ev.(type) {
	case wire.MessageStart:
		// A new logical response; stale accumulators would be a bug
		// upstream, but drop them rather than mixing blocks.
		if len(d.blocks) > 0 {
			d.logger.Warn(context.Background(), "message started with open blocks",
				observe.Field{Key: "open_blocks", Value: len(d.blocks)})
			d.blocks = make(map[int]*accumulator)
		}
		return nil

	case wire.ContentBlockStart:
		return d.startBlock(ev)

	case wire.ContentBlockDelta:
		return d.appendDelta(ev)

	case wire.ContentBlockStop:
		return d.stopBlock(ev)

	case wire.MessageDelta:
		if ev.StopReason != "" {
			d.stopReason = ev.StopReason
		}
		return nil

	case wire.MessageStop:
		d.terminate()
		return []Message{Complete{StopReason: d.stopReason}}

	case wire.ErrorEvent:
		d.terminate()
		cause := resilience.NewError(errorKind(ev.Type), fmt.Errorf("server error %q: %s", ev.Type, ev.Message))
		return []Message{Failed{Cause: cause}}

	case wire.Ping:
		return nil
	}

	return nil
}

// Fail terminates the stream with a transport-level failure, such as a
// dropped connection or an inactivity timeout. It emits the terminal
// Failed exactly once; subsequent calls return nil.
func (d *Decoder) Fail(cause error) []Message {
	if d.done {
		return nil
	}
	d.terminate()
	return []Message{Failed{Cause: cause}}
}

// Reset clears all decoder state without emitting anything, making the
// decoder reusable for the next attempt.
func (d *Decoder) Reset() {
	d.blocks = make(map[int]*accumulator)
	d.stopReason = ""
	d.done = false
}

func (d *Decoder) startBlock(ev wire.ContentBlockStart) []Message {
	if _, exists := d.blocks[ev.Index]; exists {
		d.logger.Warn(context.Background(), "duplicate content block start",
			observe.Field{Key: "index", Value: ev.Index})
		return nil
	}
	d.blocks[ev.Index] = &accumulator{
		kind:     ev.Kind,
		toolName: ev.ToolName,
	}
	return nil
}

func (d *Decoder) appendDelta(ev wire.ContentBlockDelta) []Message {
	acc, ok := d.blocks[ev.Index]
	if !ok {
		// Out-of-order or malformed input; discard rather than crash.
		d.logger.Debug(context.Background(), "delta for unopened block",
			observe.Field{Key: "index", Value: ev.Index})
		return nil
	}

	switch acc.kind {
	case wire.BlockText:
		// Emitted immediately for progressive rendering.
		return []Message{TextDelta{Text: ev.Payload}}
	case wire.BlockToolUse:
		acc.buf.WriteString(ev.Payload)
	}
	return nil
}

func (d *Decoder) stopBlock(ev wire.ContentBlockStop) []Message {
	acc, ok := d.blocks[ev.Index]
	if !ok {
		return nil
	}
	delete(d.blocks, ev.Index)

	if acc.kind != wire.BlockToolUse {
		return nil
	}

	raw := acc.buf.String()
	if raw == "" {
		// Tools without arguments stream no delta payload at all.
		raw = "{}"
	}
	if !json.Valid([]byte(raw)) {
		d.logger.Warn(context.Background(), "dropping tool block with malformed arguments",
			observe.Field{Key: "index", Value: ev.Index},
			observe.Field{Key: "tool", Value: acc.toolName})
		return nil
	}
	args := json.RawMessage(raw)

	action, known := d.dispatch.Lookup(acc.toolName)
	switch {
	case !known:
		return []Message{UnknownToolInvocation{Name: acc.toolName, Arguments: args}}
	case action == ActionIgnore:
		d.logger.Debug(context.Background(), "ignoring tool call per dispatch table",
			observe.Field{Key: "tool", Value: acc.toolName})
		return nil
	default:
		return []Message{ToolInvocation{Name: acc.toolName, Arguments: args}}
	}
}

// terminate marks the stream finished and discards accumulator state.
func (d *Decoder) terminate() {
	d.done = true
	d.blocks = make(map[int]*accumulator)
}

// errorKind maps a server-reported error type to a failure kind.
func errorKind(errType string) resilience.Kind {
	switch errType {
	case "rate_limit_error":
		return resilience.KindRateLimited
	case "authentication_error", "permission_error":
		return resilience.KindAuth
	case "invalid_request_error":
		return resilience.KindValidation
	default:
		// overloaded_error, api_error, and anything unrecognized.
		return resilience.KindServer
	}
}
