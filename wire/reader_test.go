package wire

import (
	"io"
	"strings"
	"testing"
)

func TestReader_TextStream(t *testing.T) {
	raw := strings.Join([]string{
		"event: message_start",
		`data: {"type":"message_start","message":{"id":"msg_1","model":"m"}}`,
		"",
		"event: content_block_start",
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hello"}}`,
		"",
		"event: content_block_stop",
		`data: {"type":"content_block_stop","index":0}`,
		"",
		"event: message_stop",
		`data: {"type":"message_stop"}`,
		"",
	}, "\n")

	r := NewReader(strings.NewReader(raw))

	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}

	start, ok := events[0].(MessageStart)
	if !ok {
		t.Fatalf("events[0] = %T, want MessageStart", events[0])
	}
	if start.ID != "msg_1" {
		t.Errorf("MessageStart.ID = %q, want msg_1", start.ID)
	}

	blockStart, ok := events[1].(ContentBlockStart)
	if !ok {
		t.Fatalf("events[1] = %T, want ContentBlockStart", events[1])
	}
	if blockStart.Kind != BlockText {
		t.Errorf("Kind = %v, want text", blockStart.Kind)
	}

	delta, ok := events[2].(ContentBlockDelta)
	if !ok {
		t.Fatalf("events[2] = %T, want ContentBlockDelta", events[2])
	}
	if delta.Kind != DeltaText || delta.Payload != "hello" {
		t.Errorf("delta = %+v, want text_delta %q", delta, "hello")
	}

	if _, ok := events[4].(MessageStop); !ok {
		t.Errorf("events[4] = %T, want MessageStop", events[4])
	}
}

func TestReader_ToolUseBlock(t *testing.T) {
	raw := strings.Join([]string{
		"event: content_block_start",
		`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"tu_1","name":"begin_rendering"}}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"surfaceId\":"}}`,
		"",
	}, "\n")

	r := NewReader(strings.NewReader(raw))

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	start, ok := ev.(ContentBlockStart)
	if !ok {
		t.Fatalf("event = %T, want ContentBlockStart", ev)
	}
	if start.Kind != BlockToolUse || start.ToolName != "begin_rendering" || start.ToolID != "tu_1" {
		t.Errorf("ContentBlockStart = %+v", start)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	delta, ok := ev.(ContentBlockDelta)
	if !ok {
		t.Fatalf("event = %T, want ContentBlockDelta", ev)
	}
	if delta.Kind != DeltaJSON || delta.Payload != `{"surfaceId":` {
		t.Errorf("delta = %+v", delta)
	}
}

func TestReader_MultiLineData(t *testing.T) {
	raw := strings.Join([]string{
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":0,`,
		`data: "delta":{"type":"text_delta","text":"ab"}}`,
		"",
	}, "\n")

	r := NewReader(strings.NewReader(raw))
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	delta, ok := ev.(ContentBlockDelta)
	if !ok {
		t.Fatalf("event = %T, want ContentBlockDelta", ev)
	}
	if delta.Payload != "ab" {
		t.Errorf("Payload = %q, want ab", delta.Payload)
	}
}

func TestReader_SkipsUnknownEventsAndComments(t *testing.T) {
	raw := strings.Join([]string{
		": keepalive comment",
		"event: content_block_shrug",
		`data: {"type":"content_block_shrug"}`,
		"",
		"event: ping",
		`data: {"type":"ping"}`,
		"",
	}, "\n")

	r := NewReader(strings.NewReader(raw))
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if _, ok := ev.(Ping); !ok {
		t.Errorf("event = %T, want Ping", ev)
	}
}

func TestReader_EOF(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestReader_MalformedFrame(t *testing.T) {
	raw := "event: message_delta\ndata: {not json\n\n"
	r := NewReader(strings.NewReader(raw))
	if _, err := r.Next(); err == nil {
		t.Error("Next() error = nil, want parse error")
	}
}

func TestReader_ErrorEvent(t *testing.T) {
	raw := strings.Join([]string{
		"event: error",
		`data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
		"",
	}, "\n")

	r := NewReader(strings.NewReader(raw))
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	e, ok := ev.(ErrorEvent)
	if !ok {
		t.Fatalf("event = %T, want ErrorEvent", ev)
	}
	if e.Type != "overloaded_error" || e.Message != "Overloaded" {
		t.Errorf("ErrorEvent = %+v", e)
	}
}

func TestParseBlockKind(t *testing.T) {
	tests := []struct {
		in   string
		want BlockKind
	}{
		{"text", BlockText},
		{"tool_use", BlockToolUse},
		{"thinking", BlockUnknown},
		{"", BlockUnknown},
	}
	for _, tt := range tests {
		if got := parseBlockKind(tt.in); got != tt.want {
			t.Errorf("parseBlockKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
