// Package hooks implements the ordered, chaining lifecycle hook registry:
// a sorted list per event name threading a typed context value through
// each handler, with HookBlock used as a tagged veto signal any handler
// at any depth can raise.
package hooks

import "context"

// Event names the lifecycle point a handler fires at.
type Event string

const (
	EventInput             Event = "input"
	EventBeforeAgentStart  Event = "before_agent_start"
	EventAgentStart        Event = "agent_start"
	EventTurnStart         Event = "turn_start"
	EventContextAssemble   Event = "context_assemble"
	EventToolCall          Event = "tool_call"
	EventToolExecutionStart Event = "tool_execution_start"
	EventToolExecutionEnd  Event = "tool_execution_end"
	EventToolResult        Event = "tool_result"
	EventTurnEnd           Event = "turn_end"
	EventAgentEnd          Event = "agent_end"
	EventMemoryFlush       Event = "memory_flush"
	EventSessionCompact    Event = "session_compact"
)

// Context is the mutable payload threaded through a hook chain. Each
// handler may return a new *Context that becomes the input to the next
// handler; the final value is returned to the caller of Fire.
type Context struct {
	Event  Event
	Values map[string]any
}

// NewContext builds an empty hook context for the given event.
func NewContext(event Event) *Context {
	return &Context{Event: event, Values: make(map[string]any)}
}

// Get returns a value from the context, with a boolean for presence.
func (c *Context) Get(key string) (any, bool) {
	if c == nil || c.Values == nil {
		return nil, false
	}
	v, ok := c.Values[key]
	return v, ok
}

// With returns a shallow copy of c with key set to value, leaving the
// original untouched so handlers may chain without racing sibling reads.
func (c *Context) With(key string, value any) *Context {
	cp := &Context{Event: c.Event, Values: make(map[string]any, len(c.Values)+1)}
	for k, v := range c.Values {
		cp.Values[k] = v
	}
	cp.Values[key] = value
	return cp
}

// Handler processes a hook event and returns the (possibly new) context
// value to pass to the next handler in the chain. Returning a
// *HookBlockError vetoes whatever flow-control decision the caller is
// making (e.g. a tool call); any other error stops the chain.
type Handler func(ctx context.Context, hc *Context) (*Context, error)
