package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentplane/core/internal/agent"
	"github.com/agentplane/core/pkg/models"
)

// DefaultAgentSendTimeout bounds agent_send's wait-mode reply.
const DefaultAgentSendTimeout = 30 * time.Second

// DefaultAgentSpawnTimeout bounds agent_spawn's delegated run.
const DefaultAgentSpawnTimeout = 30 * time.Second

// CoordinationTools exposes the orchestrator's coordination behaviors
// (agent_spawn, agent_send, broadcast, pipeline, supervisor) as tool
// handlers registrable on a tools.Registry.
type CoordinationTools struct {
	Registry *Registry
}

// NewCoordinationTools builds a CoordinationTools bound to registry.
func NewCoordinationTools(registry *Registry) *CoordinationTools {
	return &CoordinationTools{Registry: registry}
}

// drainLastAssistantText runs events to completion and returns the
// final assistant message's text, or the first error encountered.
func drainLastAssistantText(events <-chan agent.Event) (string, error) {
	var last string
	for ev := range events {
		switch ev.Kind {
		case agent.EventError:
			if ev.Err != nil {
				return "", ev.Err
			}
			return "", fmt.Errorf("agent run failed")
		case agent.EventAssistantMessage:
			if ev.Message != nil {
				last = ev.Message.Content
			}
		}
	}
	return last, nil
}

type agentSpawnArgs struct {
	TargetAgent string `json:"targetAgent"`
	Task        string `json:"task"`
	Context     string `json:"context,omitempty"`
	Caller      string `json:"caller,omitempty"`
}

// AgentSpawn implements the agent_spawn coordination tool: formats a
// delegation message, dispatches it to targetAgent, and returns the
// last assistant text or an error on timeout/unknown/unavailable/
// dispatch failure. The delegated run is bounded by
// DefaultAgentSpawnTimeout regardless of target locality.
func (c *CoordinationTools) AgentSpawn(ctx context.Context, raw json.RawMessage) (any, error) {
	var args agentSpawnArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid agent_spawn arguments: %w", err)
	}
	caller := args.Caller
	if caller == "" {
		caller = "orchestrator"
	}
	content := fmt.Sprintf("[Delegated from %s]\nTask: %s\nContext: %s", caller, args.Task, args.Context)

	spawnCtx, cancel := context.WithTimeout(ctx, DefaultAgentSpawnTimeout)
	defer cancel()

	events, err := c.Registry.Dispatch(spawnCtx, args.TargetAgent, models.Message{Role: models.RoleUser, Content: content})
	if err != nil {
		return nil, fmt.Errorf("agent_spawn: %w", err)
	}

	result := make(chan struct {
		text string
		err  error
	}, 1)
	go func() {
		text, err := drainLastAssistantText(events)
		result <- struct {
			text string
			err  error
		}{text, err}
	}()

	select {
	case <-spawnCtx.Done():
		return nil, fmt.Errorf("agent_spawn to %q: %w", args.TargetAgent, spawnCtx.Err())
	case r := <-result:
		if r.err != nil {
			return nil, fmt.Errorf("agent_spawn to %q: %w", args.TargetAgent, r.err)
		}
		return r.text, nil
	}
}

type agentSendArgs struct {
	TargetAgent  string `json:"targetAgent"`
	Message      string `json:"message"`
	WaitForReply bool   `json:"waitForReply,omitempty"`
	MaxExchanges int    `json:"maxExchanges,omitempty"`
}

// AgentSend implements the agent_send coordination tool: fire-and-forget
// returns immediately, wait-mode returns the last assistant text within
// a bounded timeout.
func (c *CoordinationTools) AgentSend(ctx context.Context, raw json.RawMessage) (any, error) {
	var args agentSendArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid agent_send arguments: %w", err)
	}

	events, err := c.Registry.Dispatch(ctx, args.TargetAgent, models.Message{Role: models.RoleUser, Content: args.Message})
	if err != nil {
		return nil, fmt.Errorf("agent_send: %w", err)
	}

	if !args.WaitForReply {
		go func() {
			for range events {
			}
		}()
		return "sent", nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, DefaultAgentSendTimeout)
	defer cancel()

	result := make(chan struct {
		text string
		err  error
	}, 1)
	go func() {
		text, err := drainLastAssistantText(events)
		result <- struct {
			text string
			err  error
		}{text, err}
	}()

	select {
	case <-waitCtx.Done():
		return nil, fmt.Errorf("agent_send to %q: %w", args.TargetAgent, waitCtx.Err())
	case r := <-result:
		if r.err != nil {
			return nil, fmt.Errorf("agent_send to %q: %w", args.TargetAgent, r.err)
		}
		return r.text, nil
	}
}

type broadcastArgs struct {
	Agents  []string `json:"agents"`
	Message string   `json:"message"`
}

// BroadcastResult is one agent's outcome within a broadcast call.
type BroadcastResult struct {
	Agent    string `json:"agent"`
	Status   string `json:"status"` // "fulfilled" or "rejected"
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Broadcast implements the broadcast coordination tool: dispatches to
// every listed agent concurrently and reports each outcome independently.
func (c *CoordinationTools) Broadcast(ctx context.Context, raw json.RawMessage) (any, error) {
	var args broadcastArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid broadcast arguments: %w", err)
	}

	results := make([]BroadcastResult, len(args.Agents))
	var wg sync.WaitGroup
	for i, agentID := range args.Agents {
		wg.Add(1)
		go func(i int, agentID string) {
			defer wg.Done()
			events, err := c.Registry.Dispatch(ctx, agentID, models.Message{Role: models.RoleUser, Content: args.Message})
			if err != nil {
				results[i] = BroadcastResult{Agent: agentID, Status: "rejected", Error: err.Error()}
				return
			}
			text, err := drainLastAssistantText(events)
			if err != nil {
				results[i] = BroadcastResult{Agent: agentID, Status: "rejected", Error: err.Error()}
				return
			}
			results[i] = BroadcastResult{Agent: agentID, Status: "fulfilled", Response: text}
		}(i, agentID)
	}
	wg.Wait()
	return results, nil
}

type pipelineStage struct {
	Agent string `json:"agent"`
}

type pipelineArgs struct {
	Stages []pipelineStage `json:"stages"`
	Input  string          `json:"input"`
}

// Pipeline implements the pipeline coordination tool: pipes each
// stage's output as the next stage's input, sequentially.
func (c *CoordinationTools) Pipeline(ctx context.Context, raw json.RawMessage) (any, error) {
	var args pipelineArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid pipeline arguments: %w", err)
	}

	current := args.Input
	for _, stage := range args.Stages {
		events, err := c.Registry.Dispatch(ctx, stage.Agent, models.Message{Role: models.RoleUser, Content: current})
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %q: %w", stage.Agent, err)
		}
		text, err := drainLastAssistantText(events)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %q: %w", stage.Agent, err)
		}
		current = text
	}
	return current, nil
}

type supervisorArgs struct {
	Supervisor string   `json:"supervisor"`
	Workers    []string `json:"workers"`
	Task       string   `json:"task"`
}

// Supervisor implements the supervisor coordination tool: hands the
// task, framed with the available worker roster, to the supervisor
// agent, which delegates among workers via its own agent_spawn/
// agent_send tool calls.
func (c *CoordinationTools) Supervisor(ctx context.Context, raw json.RawMessage) (any, error) {
	var args supervisorArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid supervisor arguments: %w", err)
	}
	content := fmt.Sprintf("Task: %s\nAvailable workers: %v", args.Task, args.Workers)

	events, err := c.Registry.Dispatch(ctx, args.Supervisor, models.Message{Role: models.RoleUser, Content: content})
	if err != nil {
		return nil, fmt.Errorf("supervisor %q: %w", args.Supervisor, err)
	}
	text, err := drainLastAssistantText(events)
	if err != nil {
		return nil, fmt.Errorf("supervisor %q: %w", args.Supervisor, err)
	}
	return text, nil
}
