package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agentplane/core/internal/agent"
	"github.com/agentplane/core/internal/bus"
	"github.com/agentplane/core/pkg/models"
)

// Worker subscribes an agent's inbox on the bus and drives its local
// loop, shipping each loop event back to the requester's reply-to
// inbox as a RemoteEvent, terminated by a task.done or task.error
// envelope. This is what makes a locally registered agent reachable
// from another node's remote dispatch stub.
type Worker struct {
	AgentID  string
	Bus      *bus.Bus
	Manager  *agent.Manager
	ToolDefs []models.ToolDefinition
	Logger   *slog.Logger
}

// NewWorker builds a Worker for agentID. Pass a nil logger for slog.Default().
func NewWorker(agentID string, b *bus.Bus, manager *agent.Manager, toolDefs []models.ToolDefinition, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{AgentID: agentID, Bus: b, Manager: manager, ToolDefs: toolDefs, Logger: logger.With("component", "orchestrator.worker", "agentId", agentID)}
}

// Start subscribes the worker's inbox subject and returns an unsubscribe
// function.
func (w *Worker) Start(ctx context.Context) (func() error, error) {
	target, err := models.ParseTarget("agent://" + w.AgentID)
	if err != nil {
		return nil, err
	}
	subject, err := bus.DeriveSubject(target)
	if err != nil {
		return nil, err
	}
	return w.Bus.Subscribe(subject, w.AgentID, func(env *models.Envelope) {
		w.handle(ctx, env)
	})
}

func (w *Worker) handle(ctx context.Context, env *models.Envelope) {
	msg, err := decodeMessage(env.Data)
	if err != nil {
		w.reply(env, models.TypeTaskError, RemoteEvent{Kind: string(agent.EventError), Error: err.Error()})
		return
	}

	events, err := w.Manager.Dispatch(ctx, w.AgentID, msg, w.ToolDefs)
	if err != nil {
		w.reply(env, models.TypeTaskError, RemoteEvent{Kind: string(agent.EventError), Error: err.Error()})
		return
	}

	for ev := range events {
		re := RemoteEvent{Kind: string(ev.Kind), Message: ev.Message, ToolResult: ev.ToolResult}
		if ev.Err != nil {
			re.Error = ev.Err.Error()
		}

		switch ev.Kind {
		case agent.EventError:
			w.reply(env, models.TypeTaskError, re)
			return
		default:
			w.reply(env, models.TypeTaskResponse, re)
		}
	}
	w.reply(env, models.TypeTaskDone, RemoteEvent{Kind: string(agent.EventAssistantMessage)})
}

func (w *Worker) reply(source *models.Envelope, typ models.EnvelopeType, payload RemoteEvent) {
	if source.ReplyTo == "" {
		return
	}
	out := models.NewEnvelope(typ, "agent://"+w.AgentID, source.ReplyTo, payload)
	out.CorrelationID = source.ReplyTo
	if err := w.Bus.PublishCore(source.ReplyTo, out); err != nil {
		w.Logger.Warn("reply publish failed", "error", err)
	}
}

func decodeMessage(data any) (models.Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal inbound data: %w", err)
	}
	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.Message{}, fmt.Errorf("decode inbound message: %w", err)
	}
	return msg, nil
}
