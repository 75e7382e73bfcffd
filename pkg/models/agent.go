package models

import (
	"fmt"
	"sync"
	"time"
)

// AgentStatus is a state in the agent lifecycle state machine.
type AgentStatus string

const (
	StatusRegistered   AgentStatus = "REGISTERED"
	StatusInitializing AgentStatus = "INITIALIZING"
	StatusReady        AgentStatus = "READY"
	StatusRunning      AgentStatus = "RUNNING"
	StatusSuspended    AgentStatus = "SUSPENDED"
	StatusTerminated   AgentStatus = "TERMINATED"
	StatusError        AgentStatus = "ERROR"
)

// permitted enumerates every legal from->to edge. ERROR is reachable from
// any non-terminal state but is listed explicitly for clarity.
var permitted = map[AgentStatus]map[AgentStatus]bool{
	StatusRegistered:   {StatusInitializing: true, StatusError: true},
	StatusInitializing: {StatusReady: true, StatusError: true},
	StatusReady:        {StatusRunning: true, StatusTerminated: true, StatusError: true},
	StatusRunning:      {StatusReady: true, StatusSuspended: true, StatusError: true},
	StatusSuspended:    {StatusRunning: true, StatusTerminated: true, StatusError: true},
	StatusError:        {StatusTerminated: true},
	StatusTerminated:   {},
}

// CanTransition reports whether from->to is a permitted move.
func CanTransition(from, to AgentStatus) bool {
	if from == to {
		return false
	}
	edges, ok := permitted[from]
	if !ok {
		return false
	}
	return edges[to]
}

// TokenUsage tracks running token counters for an agent.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// ControlBlock is the Agent Control Block: the per-agent state owned
// exclusively by the agent manager.
type ControlBlock struct {
	mu            sync.RWMutex
	AgentID       string
	status        AgentStatus
	Priority      int
	CurrentTaskID string
	LoopIteration int
	Usage         TokenUsage
	CreatedAt     time.Time
	LastActiveAt  time.Time
}

// NewControlBlock creates a control block in REGISTERED state.
func NewControlBlock(agentID string, priority int) *ControlBlock {
	now := time.Now()
	return &ControlBlock{
		AgentID:      agentID,
		status:       StatusRegistered,
		Priority:     priority,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Status returns the current status.
func (c *ControlBlock) Status() AgentStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Transition attempts from->to; it fails with a structured error naming
// from->to if the move is not permitted.
func (c *ControlBlock) Transition(to AgentStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.status
	if from != StatusTerminated && to == StatusError {
		c.status = StatusError
		c.LastActiveAt = time.Now()
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w", &InvalidStateTransitionError{From: from, To: to})
	}
	c.status = to
	c.LastActiveAt = time.Now()
	return nil
}

// Touch bumps LastActiveAt and increments LoopIteration.
func (c *ControlBlock) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LoopIteration++
	c.LastActiveAt = time.Now()
}
