package stream

import (
	"errors"
	"testing"

	"github.com/streamgate-io/streamgate/resilience"
	"github.com/streamgate-io/streamgate/wire"
)

// feedAll pushes events through the decoder and collects every message.
func feedAll(d *Decoder, events ...wire.Event) []Message {
	var out []Message
	for _, ev := range events {
		out = append(out, d.Feed(ev)...)
	}
	return out
}

func TestDecoder_TextStream(t *testing.T) {
	d := NewDecoder(nil, nil)

	got := feedAll(d,
		wire.MessageStart{ID: "msg_1", Model: "m-1"},
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockText},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaText, Payload: "Hello"},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaText, Payload: ", world"},
		wire.ContentBlockStop{Index: 0},
		wire.MessageDelta{StopReason: "end_turn"},
		wire.MessageStop{},
	)

	want := []Message{
		TextDelta{Text: "Hello"},
		TextDelta{Text: ", world"},
		Complete{StopReason: "end_turn"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestDecoder_ToolInvocationAssembly(t *testing.T) {
	d := NewDecoder(Dispatch{"begin_rendering": ActionInvoke}, nil)

	got := feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockToolUse, ToolName: "begin_rendering"},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaJSON, Payload: `{"surfaceId":`},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaJSON, Payload: `"s1"}`},
		wire.ContentBlockStop{Index: 0},
		wire.MessageStop{},
	)

	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2: %v", len(got), got)
	}
	inv, ok := got[0].(ToolInvocation)
	if !ok {
		t.Fatalf("message 0 = %#v, want ToolInvocation", got[0])
	}
	if inv.Name != "begin_rendering" {
		t.Errorf("Name = %q, want begin_rendering", inv.Name)
	}
	if string(inv.Arguments) != `{"surfaceId":"s1"}` {
		t.Errorf("Arguments = %s", inv.Arguments)
	}
	if _, ok := got[1].(Complete); !ok {
		t.Errorf("message 1 = %#v, want Complete", got[1])
	}
}

func TestDecoder_IgnoredToolEmitsNothing(t *testing.T) {
	d := NewDecoder(Dispatch{"unknown_widget": ActionIgnore}, nil)

	got := feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockToolUse, ToolName: "unknown_widget"},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaJSON, Payload: `{}`},
		wire.ContentBlockStop{Index: 0},
	)

	if len(got) != 0 {
		t.Errorf("got %v, want no messages for an ignored tool", got)
	}
}

func TestDecoder_UnlistedToolSurfacesAsUnknown(t *testing.T) {
	d := NewDecoder(Dispatch{"begin_rendering": ActionInvoke}, nil)

	got := feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockToolUse, ToolName: "new_tool"},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaJSON, Payload: `{"a":1}`},
		wire.ContentBlockStop{Index: 0},
	)

	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	unk, ok := got[0].(UnknownToolInvocation)
	if !ok {
		t.Fatalf("message = %#v, want UnknownToolInvocation", got[0])
	}
	if unk.Name != "new_tool" || string(unk.Arguments) != `{"a":1}` {
		t.Errorf("UnknownToolInvocation = %+v", unk)
	}
}

func TestDecoder_MalformedToolJSONDropsBlock(t *testing.T) {
	d := NewDecoder(Dispatch{"begin_rendering": ActionInvoke}, nil)

	got := feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockToolUse, ToolName: "begin_rendering"},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaJSON, Payload: `{"surfaceId":`},
		wire.ContentBlockStop{Index: 0}, // JSON truncated
		wire.ContentBlockStart{Index: 1, Kind: wire.BlockText},
		wire.ContentBlockDelta{Index: 1, Kind: wire.DeltaText, Payload: "still going"},
		wire.MessageStop{},
	)

	// The broken block vanishes; the stream continues.
	want := []Message{TextDelta{Text: "still going"}, Complete{}}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d: %v", len(got), len(want), got)
	}
	if got[0] != want[0] {
		t.Errorf("message 0 = %#v, want %#v", got[0], want[0])
	}
}

func TestDecoder_EmptyToolArguments(t *testing.T) {
	d := NewDecoder(Dispatch{"refresh": ActionInvoke}, nil)

	got := feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockToolUse, ToolName: "refresh"},
		wire.ContentBlockStop{Index: 0},
	)

	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	inv := got[0].(ToolInvocation)
	if string(inv.Arguments) != "{}" {
		t.Errorf("Arguments = %s, want {}", inv.Arguments)
	}
}

func TestDecoder_DuplicateStartIsDropped(t *testing.T) {
	d := NewDecoder(Dispatch{"begin_rendering": ActionInvoke}, nil)

	got := feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockToolUse, ToolName: "begin_rendering"},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaJSON, Payload: `{"x":1}`},
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockText}, // duplicate index
		wire.ContentBlockStop{Index: 0},
	)

	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1: %v", len(got), got)
	}
	inv, ok := got[0].(ToolInvocation)
	if !ok || string(inv.Arguments) != `{"x":1}` {
		t.Errorf("message = %#v, want the original tool block intact", got[0])
	}
}

func TestDecoder_OrphanDeltaIsDiscarded(t *testing.T) {
	d := NewDecoder(nil, nil)

	got := feedAll(d,
		wire.ContentBlockDelta{Index: 7, Kind: wire.DeltaText, Payload: "lost"},
		wire.ContentBlockStop{Index: 7},
	)
	if len(got) != 0 {
		t.Errorf("got %v, want nothing for orphan events", got)
	}
}

func TestDecoder_InterleavedBlocks(t *testing.T) {
	d := NewDecoder(Dispatch{"begin_rendering": ActionInvoke}, nil)

	got := feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockText},
		wire.ContentBlockStart{Index: 3, Kind: wire.BlockToolUse, ToolName: "begin_rendering"},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaText, Payload: "a"},
		wire.ContentBlockDelta{Index: 3, Kind: wire.DeltaJSON, Payload: `{"s":`},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaText, Payload: "b"},
		wire.ContentBlockDelta{Index: 3, Kind: wire.DeltaJSON, Payload: `1}`},
		wire.ContentBlockStop{Index: 3},
		wire.ContentBlockStop{Index: 0},
		wire.MessageStop{},
	)

	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4: %v", len(got), got)
	}
	if got[0] != (TextDelta{Text: "a"}) || got[1] != (TextDelta{Text: "b"}) {
		t.Errorf("text deltas out of order: %v", got[:2])
	}
	if inv, ok := got[2].(ToolInvocation); !ok || string(inv.Arguments) != `{"s":1}` {
		t.Errorf("message 2 = %#v, want assembled tool invocation", got[2])
	}
}

func TestDecoder_ErrorEventTerminates(t *testing.T) {
	d := NewDecoder(nil, nil)

	got := feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockText},
		wire.ErrorEvent{Type: "overloaded_error", Message: "overloaded"},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaText, Payload: "after error"},
		wire.MessageStop{},
	)

	if len(got) != 1 {
		t.Fatalf("got %d messages, want exactly one terminal: %v", len(got), got)
	}
	failed, ok := got[0].(Failed)
	if !ok {
		t.Fatalf("message = %#v, want Failed", got[0])
	}
	if !errors.Is(failed.Cause, resilience.ErrServer) {
		t.Errorf("Cause = %v, want a server failure", failed.Cause)
	}
}

func TestDecoder_ErrorEventKinds(t *testing.T) {
	tests := []struct {
		errType string
		want    error
	}{
		{"rate_limit_error", resilience.ErrRateLimited},
		{"authentication_error", resilience.ErrAuth},
		{"invalid_request_error", resilience.ErrValidation},
		{"overloaded_error", resilience.ErrServer},
		{"api_error", resilience.ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.errType, func(t *testing.T) {
			d := NewDecoder(nil, nil)
			got := d.Feed(wire.ErrorEvent{Type: tt.errType})
			if len(got) != 1 {
				t.Fatalf("got %d messages, want 1", len(got))
			}
			if !errors.Is(got[0].(Failed).Cause, tt.want) {
				t.Errorf("Cause = %v, want %v", got[0].(Failed).Cause, tt.want)
			}
		})
	}
}

func TestDecoder_FailEmitsTerminalOnce(t *testing.T) {
	d := NewDecoder(nil, nil)
	cause := resilience.NewError(resilience.KindTimeout, errors.New("stream stalled"))

	first := d.Fail(cause)
	if len(first) != 1 {
		t.Fatalf("Fail() = %v, want one Failed", first)
	}
	if failed := first[0].(Failed); failed.Cause != cause {
		t.Errorf("Cause = %v, want %v", failed.Cause, cause)
	}

	if second := d.Fail(cause); second != nil {
		t.Errorf("second Fail() = %v, want nil", second)
	}
	if after := d.Feed(wire.MessageStop{}); after != nil {
		t.Errorf("Feed() after terminal = %v, want nil", after)
	}
}

func TestDecoder_ResetReusesDecoder(t *testing.T) {
	d := NewDecoder(nil, nil)

	_ = feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockText},
		wire.MessageStop{},
	)

	d.Reset()

	got := feedAll(d,
		wire.ContentBlockStart{Index: 0, Kind: wire.BlockText},
		wire.ContentBlockDelta{Index: 0, Kind: wire.DeltaText, Payload: "second attempt"},
		wire.MessageStop{},
	)
	if len(got) != 2 {
		t.Fatalf("got %d messages after Reset, want 2: %v", len(got), got)
	}
	if got[0] != (TextDelta{Text: "second attempt"}) {
		t.Errorf("message 0 = %#v", got[0])
	}
}

func TestDecoder_PingIsActivityOnly(t *testing.T) {
	d := NewDecoder(nil, nil)
	if got := d.Feed(wire.Ping{}); got != nil {
		t.Errorf("Feed(Ping) = %v, want nil", got)
	}
}
