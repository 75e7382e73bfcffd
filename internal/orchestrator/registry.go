package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentplane/core/internal/agent"
	"github.com/agentplane/core/internal/bus"
	"github.com/agentplane/core/pkg/models"
)

// DefaultRemoteTimeout bounds how long a remote dispatch waits for a
// terminal event before giving up.
const DefaultRemoteTimeout = 5 * time.Minute

// Registry maps an agent ID to a dispatchable entry, serving local
// agents directly from the in-process agent.Manager and synthesizing a
// bus-backed stub for anything not locally registered.
type Registry struct {
	Local          *agent.Manager
	Bus            *bus.Bus
	RemoteTimeout  time.Duration
	RemoteToolDefs []models.ToolDefinition
}

// NewRegistry builds a Registry over the given local manager and bus.
func NewRegistry(local *agent.Manager, b *bus.Bus) *Registry {
	return &Registry{Local: local, Bus: b, RemoteTimeout: DefaultRemoteTimeout}
}

// GetStatus reports an agent's status: local agents report their real
// lifecycle state; anything unregistered is assumed "remote" and
// reachable, since presence can only be confirmed by dispatching.
func (r *Registry) GetStatus(agentID string) (models.AgentStatus, error) {
	if status, err := r.Local.Status(agentID); err == nil {
		return status, nil
	}
	return models.StatusReady, nil
}

// Dispatch routes message to agentID, preferring the local manager and
// falling back to a remote stub over the bus.
func (r *Registry) Dispatch(ctx context.Context, agentID string, message models.Message) (<-chan agent.Event, error) {
	if _, ok := r.Local.Get(agentID); ok {
		return r.Local.Dispatch(ctx, agentID, message, r.RemoteToolDefs)
	}
	return r.dispatchRemote(ctx, agentID, message)
}

// dispatchRemote synthesizes the stub dispatch path: mint an inbox,
// subscribe an AsyncEventQueue to it, publish the request with
// replyTo set to the inbox, and translate arriving envelopes back into
// agent.Events until a terminal envelope or timeout.
func (r *Registry) dispatchRemote(ctx context.Context, agentID string, message models.Message) (<-chan agent.Event, error) {
	if r.Bus == nil {
		return nil, fmt.Errorf("agent %q is not registered and no bus is configured for remote dispatch", agentID)
	}

	inbox := "reply." + uuid.NewString()
	queue := NewAsyncEventQueue[*models.Envelope]()

	r.Bus.OnResponseForCorrelation(inbox, func(env *models.Envelope) {
		if isTerminal(env.Type) {
			queue.Push(env)
			queue.Complete()
			return
		}
		queue.Push(env)
	})
	unsubscribe, err := r.Bus.Subscribe(inbox, "", r.Bus.Deliver)
	if err != nil {
		r.Bus.RemoveResponseListener(inbox)
		return nil, fmt.Errorf("subscribe reply inbox for %q: %w", agentID, err)
	}

	req := models.NewEnvelope(models.TypeTaskRequest, "orchestrator", "agent://"+agentID, message)
	req.ReplyTo = inbox
	if err := r.Bus.InjectMessage(req); err != nil {
		r.Bus.RemoveResponseListener(inbox)
		unsubscribe()
		return nil, fmt.Errorf("dispatch to %q: %w", agentID, err)
	}

	timeout := r.RemoteTimeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}

	events := make(chan agent.Event)
	go func() {
		defer close(events)
		defer r.Bus.RemoveResponseListener(inbox)
		defer unsubscribe()

		deadline := time.NewTimer(timeout)
		defer deadline.Stop()

		for {
			type next struct {
				env *models.Envelope
				err error
				ok  bool
			}
			result := make(chan next, 1)
			go func() {
				env, err, ok := queue.Next()
				result <- next{env, err, ok}
			}()

			select {
			case <-ctx.Done():
				queue.Cancel()
				events <- agent.Event{Kind: agent.EventError, Err: ctx.Err()}
				return
			case <-deadline.C:
				queue.Cancel()
				events <- agent.Event{Kind: agent.EventError, Err: fmt.Errorf("remote dispatch to %q timed out", agentID)}
				return
			case n := <-result:
				if !n.ok {
					if n.err != nil {
						events <- agent.Event{Kind: agent.EventError, Err: n.err}
					}
					return
				}
				ev, terminal := decodeRemoteEvent(n.env)
				events <- ev
				if terminal {
					return
				}
			}
		}
	}()

	return events, nil
}

func decodeRemoteEvent(env *models.Envelope) (agent.Event, bool) {
	raw, err := json.Marshal(env.Data)
	if err != nil {
		return agent.Event{Kind: agent.EventError, Err: err}, isTerminal(env.Type)
	}
	var re RemoteEvent
	if err := json.Unmarshal(raw, &re); err != nil {
		return agent.Event{Kind: agent.EventError, Err: err}, isTerminal(env.Type)
	}
	ev := agent.Event{Kind: agent.EventKind(re.Kind), Message: re.Message, ToolResult: re.ToolResult}
	if re.Error != "" {
		ev.Err = fmt.Errorf("%s", re.Error)
	}
	return ev, isTerminal(env.Type)
}
