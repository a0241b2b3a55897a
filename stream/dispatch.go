package stream

// Action is what the dispatch table says to do with a named tool call.
type Action int

const (
	// ActionInvoke surfaces the call as a ToolInvocation.
	ActionInvoke Action = iota
	// ActionIgnore drops the call silently; the protocol defines some
	// tool names as intentionally unhandled.
	ActionIgnore
)

// Dispatch maps tool names to actions. Names absent from the table are
// surfaced as UnknownToolInvocation rather than dropped, so callers can
// observe tools newer than their dispatch table.
type Dispatch map[string]Action

// Lookup returns the action for name and whether the name is known.
func (d Dispatch) Lookup(name string) (Action, bool) {
	a, ok := d[name]
	return a, ok
}
