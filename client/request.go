package client

import "encoding/json"

// Request describes one streaming completion request.
type Request struct {
	Model       string
	MaxTokens   int
	System      string
	Messages    []Message
	Tools       []Tool
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Tool declares a tool the model may invoke.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}
