package orchestrator

import "github.com/agentplane/core/pkg/models"

// RemoteEvent is the wire shape an agent worker ships back to a caller's
// reply-to inbox: agent.Event translated into something JSON-safe.
type RemoteEvent struct {
	Kind       string            `json:"kind"`
	Message    *models.Message   `json:"message,omitempty"`
	ToolResult *models.ToolResult `json:"toolResult,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// isTerminal reports whether t is an envelope type that ends a remote
// dispatch's event stream.
func isTerminal(t models.EnvelopeType) bool {
	return t == models.TypeTaskDone || t == models.TypeTaskError
}
