package orchestrator

import (
	"github.com/agentplane/core/internal/tools"
	"github.com/agentplane/core/pkg/models"
)

// RegisterTools installs the five coordination tools into registry under
// models.SourceOrchestration, backed by ct.
func RegisterTools(registry *tools.Registry, ct *CoordinationTools) error {
	entries := []tools.Entry{
		{
			Source: models.SourceOrchestration,
			Definition: models.ToolDefinition{
				Name:        "agent_spawn",
				Description: "Delegate a task to another agent and return its final response.",
				InputSchema: map[string]any{
					"type":     "object",
					"required": []string{"targetAgent", "task"},
					"properties": map[string]any{
						"targetAgent": map[string]any{"type": "string"},
						"task":        map[string]any{"type": "string"},
						"context":     map[string]any{"type": "string"},
					},
				},
				Annotations: models.ToolAnnotations{RiskLevel: models.RiskYellow},
			},
			Handler: ct.AgentSpawn,
		},
		{
			Source: models.SourceOrchestration,
			Definition: models.ToolDefinition{
				Name:        "agent_send",
				Description: "Send a message to another agent, optionally waiting for its reply.",
				InputSchema: map[string]any{
					"type":     "object",
					"required": []string{"targetAgent", "message"},
					"properties": map[string]any{
						"targetAgent":  map[string]any{"type": "string"},
						"message":      map[string]any{"type": "string"},
						"waitForReply": map[string]any{"type": "boolean"},
						"maxExchanges": map[string]any{"type": "integer"},
					},
				},
				Annotations: models.ToolAnnotations{RiskLevel: models.RiskYellow},
			},
			Handler: ct.AgentSend,
		},
		{
			Source: models.SourceOrchestration,
			Definition: models.ToolDefinition{
				Name:        "broadcast",
				Description: "Dispatch the same message to several agents concurrently.",
				InputSchema: map[string]any{
					"type":     "object",
					"required": []string{"agents", "message"},
					"properties": map[string]any{
						"agents":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"message": map[string]any{"type": "string"},
					},
				},
				Annotations: models.ToolAnnotations{RiskLevel: models.RiskYellow},
			},
			Handler: ct.Broadcast,
		},
		{
			Source: models.SourceOrchestration,
			Definition: models.ToolDefinition{
				Name:        "pipeline",
				Description: "Pipe output sequentially through a list of agent stages.",
				InputSchema: map[string]any{
					"type":     "object",
					"required": []string{"stages", "input"},
					"properties": map[string]any{
						"stages": map[string]any{"type": "array"},
						"input":  map[string]any{"type": "string"},
					},
				},
				Annotations: models.ToolAnnotations{RiskLevel: models.RiskYellow},
			},
			Handler: ct.Pipeline,
		},
		{
			Source: models.SourceOrchestration,
			Definition: models.ToolDefinition{
				Name:        "supervisor",
				Description: "Delegate a task to a supervisor agent that coordinates among workers.",
				InputSchema: map[string]any{
					"type":     "object",
					"required": []string{"supervisor", "workers", "task"},
					"properties": map[string]any{
						"supervisor": map[string]any{"type": "string"},
						"workers":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"task":       map[string]any{"type": "string"},
					},
				},
				Annotations: models.ToolAnnotations{RiskLevel: models.RiskYellow},
			},
			Handler: ct.Supervisor,
		},
	}

	for _, e := range entries {
		if err := registry.Register(e); err != nil {
			return err
		}
	}
	return nil
}
