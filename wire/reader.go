package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Reader assembles Events from a line-delimited SSE byte stream.
//
// Frames are "event: <type>" / "data: <json>" prefixed lines terminated by a
// blank line. Multi-line data is joined with newlines. Comment lines
// (":" prefix) and unknown fields are ignored. Unknown event types are
// skipped rather than surfaced as errors, per the protocol contract.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader over the given SSE byte stream.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next Event from the stream. It returns io.EOF when the
// underlying stream is exhausted.
func (r *Reader) Next() (Event, error) {
	for {
		eventType, data, err := r.readFrame()
		if err != nil {
			return nil, err
		}

		ev, err := parseFrame(eventType, data)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			// Unknown event type; keep reading.
			continue
		}
		return ev, nil
	}
}

// readFrame reads lines until a complete SSE frame is assembled.
func (r *Reader) readFrame() (string, string, error) {
	var eventType string
	var dataBuf strings.Builder

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			// Blank line signals end of frame.
			if dataBuf.Len() > 0 {
				return eventType, dataBuf.String(), nil
			}
			// Empty frame, keep reading.
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimPrefix(line, "data: "))
		}
		// Ignore comments (lines starting with ':') and unknown fields.
	}

	if err := r.scanner.Err(); err != nil {
		return "", "", fmt.Errorf("wire: %w", err)
	}

	// Scanner exhausted without error = EOF.
	if dataBuf.Len() > 0 {
		return eventType, dataBuf.String(), nil
	}
	return "", "", io.EOF
}

// parseFrame maps a raw SSE frame to an Event. A nil Event with nil error
// means the frame type is unknown and should be skipped.
func parseFrame(eventType, data string) (Event, error) {
	switch eventType {
	case "message_start":
		var p messageStartPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("wire: malformed message_start: %w", err)
		}
		return MessageStart{ID: p.Message.ID, Model: p.Message.Model}, nil

	case "content_block_start":
		var p contentBlockStartPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("wire: malformed content_block_start: %w", err)
		}
		return ContentBlockStart{
			Index:    p.Index,
			Kind:     parseBlockKind(p.ContentBlock.Type),
			ToolID:   p.ContentBlock.ID,
			ToolName: p.ContentBlock.Name,
		}, nil

	case "content_block_delta":
		var p contentBlockDeltaPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("wire: malformed content_block_delta: %w", err)
		}
		ev := ContentBlockDelta{Index: p.Index, Kind: parseDeltaKind(p.Delta.Type)}
		switch ev.Kind {
		case DeltaText:
			ev.Payload = p.Delta.Text
		case DeltaJSON:
			ev.Payload = p.Delta.PartialJSON
		}
		return ev, nil

	case "content_block_stop":
		var p contentBlockStopPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("wire: malformed content_block_stop: %w", err)
		}
		return ContentBlockStop{Index: p.Index}, nil

	case "message_delta":
		var p messageDeltaPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("wire: malformed message_delta: %w", err)
		}
		var stop string
		if p.Delta.StopReason != nil {
			stop = *p.Delta.StopReason
		}
		return MessageDelta{StopReason: stop}, nil

	case "message_stop":
		return MessageStop{}, nil

	case "ping":
		return Ping{}, nil

	case "error":
		var p errorPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("wire: malformed error event: %w", err)
		}
		return ErrorEvent{Type: p.Error.Type, Message: p.Error.Message}, nil

	default:
		// Unknown event types are ignored per the protocol contract.
		return nil, nil
	}
}

func parseBlockKind(s string) BlockKind {
	switch s {
	case "text":
		return BlockText
	case "tool_use":
		return BlockToolUse
	default:
		return BlockUnknown
	}
}

func parseDeltaKind(s string) DeltaKind {
	switch s {
	case "text_delta":
		return DeltaText
	case "input_json_delta":
		return DeltaJSON
	default:
		return DeltaUnknown
	}
}
