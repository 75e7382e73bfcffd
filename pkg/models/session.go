package models

import "time"

// SessionHeader is the first record written to a session log.
type SessionHeader struct {
	SessionID string    `json:"sessionId"`
	AgentID   string    `json:"agentId"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordKind discriminates the records following a session's header.
type RecordKind string

const (
	RecordMessage    RecordKind = "message"
	RecordToolResult RecordKind = "tool_result"
	RecordSummary    RecordKind = "summary"
)

// SessionRecord is one newline-delimited entry in a session log, after
// the header.
type SessionRecord struct {
	Kind      RecordKind `json:"kind"`
	Message   *Message   `json:"message,omitempty"`
	Result    *ToolResult `json:"result,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Session is the in-memory projection of a recovered session log.
type Session struct {
	Header  SessionHeader
	Records []SessionRecord
}
