package wire

// BlockKind identifies the content type of a block.
type BlockKind int

const (
	// BlockUnknown is a block type this decoder does not recognize.
	BlockUnknown BlockKind = iota
	// BlockText is a streamed text run.
	BlockText
	// BlockToolUse is a structured tool invocation with JSON arguments.
	BlockToolUse
)

// String returns the wire name of the block kind.
func (k BlockKind) String() string {
	switch k {
	case BlockText:
		return "text"
	case BlockToolUse:
		return "tool_use"
	default:
		return "unknown"
	}
}

// DeltaKind identifies the payload type of a content block delta.
type DeltaKind int

const (
	// DeltaUnknown is a delta type this decoder does not recognize.
	DeltaUnknown DeltaKind = iota
	// DeltaText carries a text fragment.
	DeltaText
	// DeltaJSON carries a partial-JSON fragment of tool arguments.
	DeltaJSON
)

// String returns the wire name of the delta kind.
func (k DeltaKind) String() string {
	switch k {
	case DeltaText:
		return "text_delta"
	case DeltaJSON:
		return "input_json_delta"
	default:
		return "unknown"
	}
}

// Event is a sealed interface representing one unit from the raw transport.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// MessageStart opens a logical response.
type MessageStart struct {
	ID    string
	Model string
}

func (MessageStart) event() {}

// ContentBlockStart opens an indexed content block.
type ContentBlockStart struct {
	Index    int
	Kind     BlockKind
	ToolID   string // set for tool_use blocks
	ToolName string // set for tool_use blocks
}

func (ContentBlockStart) event() {}

// ContentBlockDelta appends a fragment to an open block.
type ContentBlockDelta struct {
	Index   int
	Kind    DeltaKind
	Payload string
}

func (ContentBlockDelta) event() {}

// ContentBlockStop closes an indexed content block.
type ContentBlockStop struct {
	Index int
}

func (ContentBlockStop) event() {}

// MessageDelta carries message-level updates such as the stop reason.
type MessageDelta struct {
	StopReason string
}

func (MessageDelta) event() {}

// MessageStop terminates a logical response normally.
type MessageStop struct{}

func (MessageStop) event() {}

// ErrorEvent is a server-reported stream error.
type ErrorEvent struct {
	Type    string
	Message string
}

func (ErrorEvent) event() {}

// Ping is a keepalive; it carries no data but counts as stream activity.
type Ping struct{}

func (Ping) event() {}

// Interface compliance checks.
var (
	_ Event = MessageStart{}
	_ Event = ContentBlockStart{}
	_ Event = ContentBlockDelta{}
	_ Event = ContentBlockStop{}
	_ Event = MessageDelta{}
	_ Event = MessageStop{}
	_ Event = ErrorEvent{}
	_ Event = Ping{}
)
