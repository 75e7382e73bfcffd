package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentplane/core/pkg/models"
)

// Executor dispatches tool calls against a Registry: argument parsing,
// handler invocation, error capture, and duration measurement.
type Executor struct {
	Registry *Registry
	Guard    ResultGuard
}

// NewExecutor builds an Executor backed by registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{Registry: registry}
}

// Execute runs a single tool call, always reporting DurationMs from a
// monotonic clock regardless of outcome.
func (x *Executor) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	start := time.Now()
	result := models.ToolResult{ToolCallID: call.ID}

	entry, ok := x.Registry.Get(call.Name)
	if !ok {
		result.Success = false
		result.Error = "Unknown tool: " + call.Name
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	var args json.RawMessage
	if call.Arguments == "" {
		args = json.RawMessage("{}")
	} else if !json.Valid([]byte(call.Arguments)) {
		result.Success = false
		result.Error = "Invalid JSON arguments: " + call.Arguments
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	} else {
		args = json.RawMessage(call.Arguments)
	}

	output, err := entry.Handler(ctx, args)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return x.guarded(call.Name, result)
	}
	result.Success = true
	result.Output = output
	return x.guarded(call.Name, result)
}

func (x *Executor) guarded(toolName string, result models.ToolResult) models.ToolResult {
	if !x.Guard.Active() {
		return result
	}
	return x.Guard.Apply(toolName, result)
}

// ExecuteAll runs each call in listed order against this executor,
// matching the agent loop's strict sequential dispatch within one turn:
// no two tool calls from the same assistant turn ever overlap.
func (x *Executor) ExecuteAll(ctx context.Context, calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, x.Execute(ctx, call))
	}
	return results
}
