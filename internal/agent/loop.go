package agent

import (
	"context"
	"encoding/json"
	"fmt"

	agentctx "github.com/agentplane/core/internal/context"
	"github.com/agentplane/core/internal/hooks"
	"github.com/agentplane/core/internal/llm"
	"github.com/agentplane/core/internal/policy"
	"github.com/agentplane/core/internal/tools"
	"github.com/agentplane/core/pkg/models"
)

// DefaultMaxTurns bounds a run's turn-by-turn protocol absent override.
const DefaultMaxTurns = 100

// ContextAssembler builds the message list sent to the LLM for a turn,
// firing context_assemble so handlers may append sections (tool
// summaries, skills, runtime info, bootstrap files, MCP catalog).
type ContextAssembler struct {
	Hooks *hooks.Registry
}

// Assemble returns the messages to send for this turn, post-hook.
func (a *ContextAssembler) Assemble(ctx context.Context, conv *agentctx.Conversation) ([]models.Message, error) {
	messages := conv.Messages()
	hc := hooks.NewContext(hooks.EventContextAssemble).With("messages", messages)
	result, err := a.Hooks.Fire(ctx, hc)
	if err != nil {
		return nil, err
	}
	if v, ok := result.Get("messages"); ok {
		if msgs, ok := v.([]models.Message); ok {
			return msgs, nil
		}
	}
	return messages, nil
}

// Config tunes one loop run.
type Config struct {
	MaxTurns int
}

// Loop implements the turn-by-turn agentic protocol: stream the LLM,
// accumulate deltas, dispatch tool calls under hook and policy gating,
// and compact context between turns.
type Loop struct {
	Provider   llm.Provider
	Executor   *tools.Executor
	Hooks      *hooks.Registry
	Assembler  *ContextAssembler
	Compactor  *agentctx.Compactor
	PolicyEff  *policy.Effective
	Control    *models.ControlBlock
	Config     Config
}

// NewLoop wires a Loop from its collaborators. policyEff may be nil to
// permit every tool.
func NewLoop(provider llm.Provider, executor *tools.Executor, registry *hooks.Registry, compactor *agentctx.Compactor, policyEff *policy.Effective, control *models.ControlBlock, cfg Config) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	return &Loop{
		Provider:  provider,
		Executor:  executor,
		Hooks:     registry,
		Assembler: &ContextAssembler{Hooks: registry},
		Compactor: compactor,
		PolicyEff: policyEff,
		Control:   control,
		Config:    cfg,
	}
}

func (l *Loop) isAllowed(name string) bool {
	if l.PolicyEff == nil {
		return true
	}
	return l.PolicyEff.IsAllowed(name)
}

// Run executes the loop against conv until a terminal finish reason,
// max turns, or an error. Events stream on the returned channel, which
// is closed when the run ends.
func (l *Loop) Run(ctx context.Context, sessionID string, conv *agentctx.Conversation, toolDefs []models.ToolDefinition) <-chan Event {
	events := make(chan Event, 32)

	go func() {
		defer close(events)

		if err := l.Control.Transition(models.StatusRunning); err != nil {
			events <- Event{Kind: EventError, Err: err}
			return
		}

		iteration := 0
		for iteration < l.Config.MaxTurns {
			select {
			case <-ctx.Done():
				events <- Event{Kind: EventError, Iteration: iteration, Err: ctx.Err()}
				_ = l.Control.Transition(models.StatusError)
				return
			default:
			}

			turnCtx := hooks.NewContext(hooks.EventTurnStart).
				With("sessionId", sessionID).
				With("iteration", iteration)
			if _, err := l.Hooks.Fire(ctx, turnCtx); err != nil {
				events <- Event{Kind: EventError, Iteration: iteration, Err: err}
				_ = l.Control.Transition(models.StatusError)
				return
			}

			messages, err := l.Assembler.Assemble(ctx, conv)
			if err != nil {
				events <- Event{Kind: EventError, Iteration: iteration, Err: err}
				_ = l.Control.Transition(models.StatusError)
				return
			}

			allowedTools := filterTools(toolDefs, l.isAllowed)
			stream, err := l.Provider.Stream(ctx, messages, allowedTools)
			if err != nil {
				events <- Event{Kind: EventError, Iteration: iteration, Err: err}
				_ = l.Control.Transition(models.StatusError)
				return
			}
			acc := llm.Accumulate(stream)

			assistantMsg := models.Message{
				Role:      models.RoleAssistant,
				Content:   acc.Text,
				ToolCalls: acc.ToolCalls,
			}
			conv.Append(assistantMsg)
			events <- Event{Kind: EventAssistantMessage, Iteration: iteration, Message: &assistantMsg}

			if len(acc.ToolCalls) == 0 && acc.IsTerminal() {
				break
			}

			toolResults := make([]models.ToolResult, 0, len(acc.ToolCalls))
			for _, call := range acc.ToolCalls {
				callCtx := hooks.NewContext(hooks.EventToolCall).With("call", call)
				_, err := l.Hooks.Fire(ctx, callCtx)
				if hb, blocked := models.IsHookBlock(err); blocked {
					result := models.ToolResult{
						ToolCallID: call.ID,
						Success:    false,
						Error:      fmt.Sprintf("[blocked: %s]", hb.Reason),
					}
					toolResults = append(toolResults, result)
					conv.Append(toolResultMessage(call, result))
					events <- Event{Kind: EventToolBlocked, Iteration: iteration, ToolResult: &result}
					continue
				}
				if err != nil {
					events <- Event{Kind: EventError, Iteration: iteration, Err: err}
					_ = l.Control.Transition(models.StatusError)
					return
				}

				result := l.Executor.Execute(ctx, call)
				toolResults = append(toolResults, result)
				conv.Append(toolResultMessage(call, result))
				events <- Event{Kind: EventToolResult, Iteration: iteration, ToolResult: &result}
			}

			turnEndCtx := hooks.NewContext(hooks.EventTurnEnd).
				With("agentId", l.Control.AgentID).
				With("sessionId", sessionID).
				With("assistantMessage", assistantMsg).
				With("toolResults", toolResults)
			if _, err := l.Hooks.Fire(ctx, turnEndCtx); err != nil {
				events <- Event{Kind: EventError, Iteration: iteration, Err: err}
				_ = l.Control.Transition(models.StatusError)
				return
			}

			iteration++

			if l.Compactor != nil && l.Compactor.NeedsCompaction(conv) {
				if err := l.Compactor.Compact(ctx, l.Control.AgentID, sessionID, conv); err != nil {
					events <- Event{Kind: EventError, Iteration: iteration, Err: err}
					_ = l.Control.Transition(models.StatusError)
					return
				}
			}
		}

		if iteration >= l.Config.MaxTurns {
			events <- Event{Kind: EventMaxTurnsReached, Iteration: iteration}
		}
		_ = l.Control.Transition(models.StatusReady)
	}()

	return events
}

func filterTools(defs []models.ToolDefinition, allowed func(string) bool) []models.ToolDefinition {
	out := make([]models.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if allowed(d.Name) {
			out = append(out, d)
		}
	}
	return out
}

func toolResultMessage(call models.ToolCall, result models.ToolResult) models.Message {
	content := result.Error
	if result.Success {
		if b, err := json.Marshal(result.Output); err == nil {
			content = string(b)
		}
	}
	return models.Message{
		Role:       models.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
	}
}
