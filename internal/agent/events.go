// Package agent implements the turn-by-turn agentic loop and the agent
// control-block lifecycle manager.
package agent

import "github.com/agentplane/core/pkg/models"

// EventKind names a loop-emitted event, distinct from the hook registry's
// lifecycle events: these are the observable, ordered outputs of a run.
type EventKind string

const (
	EventAssistantMessage EventKind = "assistant_message"
	EventToolBlocked      EventKind = "tool_blocked"
	EventToolResult       EventKind = "tool_result"
	EventMaxTurnsReached  EventKind = "max_turns_reached"
	EventError            EventKind = "error"
)

// Event is one item in a run's ordered event stream.
type Event struct {
	Kind       EventKind
	Iteration  int
	Message    *models.Message
	ToolResult *models.ToolResult
	Err        error
}
