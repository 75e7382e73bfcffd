package agent

import (
	"context"
	"fmt"
	"sync"

	agentctx "github.com/agentplane/core/internal/context"
	"github.com/agentplane/core/pkg/models"
)

// Instance bundles a running agent's control block, conversation, and
// the loop configured to drive it.
type Instance struct {
	Control *models.ControlBlock
	Conv    *agentctx.Conversation
	Loop    *Loop
}

// Manager owns every agent's ControlBlock and gates dispatch on the
// lifecycle state machine: only READY agents may be dispatched, and
// dispatch itself performs the READY->RUNNING transition. Agents run
// cooperatively within themselves and in parallel across each other.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{instances: make(map[string]*Instance)}
}

// Register adds an agent instance in REGISTERED state and immediately
// advances it through INITIALIZING to READY; a real deployment would
// interleave resource acquisition between these transitions.
func (m *Manager) Register(agentID string, systemPrompt string, loop *Loop) (*Instance, error) {
	control := models.NewControlBlock(agentID, 0)
	if err := control.Transition(models.StatusInitializing); err != nil {
		return nil, err
	}
	if err := control.Transition(models.StatusReady); err != nil {
		return nil, err
	}
	loop.Control = control

	inst := &Instance{
		Control: control,
		Conv:    agentctx.NewConversation(systemPrompt),
		Loop:    loop,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[agentID] = inst
	return inst, nil
}

// Get returns the instance for agentID.
func (m *Manager) Get(agentID string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[agentID]
	return inst, ok
}

// AgentIDs returns every registered agent's ID, e.g. for shutdown
// teardown that must terminate each instance.
func (m *Manager) AgentIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	return ids
}

// Status reports an agent's current lifecycle state.
func (m *Manager) Status(agentID string) (models.AgentStatus, error) {
	inst, ok := m.Get(agentID)
	if !ok {
		return "", fmt.Errorf("agent %q not registered", agentID)
	}
	return inst.Control.Status(), nil
}

// Dispatch appends an inbound message and runs the agent's loop,
// refusing dispatch unless the agent is currently READY.
func (m *Manager) Dispatch(ctx context.Context, agentID string, message models.Message, toolDefs []models.ToolDefinition) (<-chan Event, error) {
	inst, ok := m.Get(agentID)
	if !ok {
		return nil, fmt.Errorf("agent %q not registered", agentID)
	}
	if inst.Control.Status() != models.StatusReady {
		return nil, fmt.Errorf("agent %q is %s, not READY", agentID, inst.Control.Status())
	}
	inst.Conv.Append(message)
	return inst.Loop.Run(ctx, agentID, inst.Conv, toolDefs), nil
}

// Suspend moves a RUNNING agent to SUSPENDED.
func (m *Manager) Suspend(agentID string) error {
	inst, ok := m.Get(agentID)
	if !ok {
		return fmt.Errorf("agent %q not registered", agentID)
	}
	return inst.Control.Transition(models.StatusSuspended)
}

// Resume moves a SUSPENDED agent back to RUNNING.
func (m *Manager) Resume(agentID string) error {
	inst, ok := m.Get(agentID)
	if !ok {
		return fmt.Errorf("agent %q not registered", agentID)
	}
	return inst.Control.Transition(models.StatusRunning)
}

// Terminate moves an agent to TERMINATED from any non-terminal state
// that allows it.
func (m *Manager) Terminate(agentID string) error {
	inst, ok := m.Get(agentID)
	if !ok {
		return fmt.Errorf("agent %q not registered", agentID)
	}
	return inst.Control.Transition(models.StatusTerminated)
}
