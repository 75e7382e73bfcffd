package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteUnknownTool(t *testing.T) {
	x := NewExecutor(NewRegistry())
	result := x.Execute(context.Background(), models.ToolCall{ID: "1", Name: "missing", Arguments: "{}"})
	require.False(t, result.Success)
	assert.Equal(t, "Unknown tool: missing", result.Error)
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))
}

func TestExecuteInvalidJSONArguments(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Entry{
		Definition: models.ToolDefinition{Name: "t"},
		Handler:    echoHandler,
		Source:     models.SourceBuiltin,
	}))
	x := NewExecutor(r)
	result := x.Execute(context.Background(), models.ToolCall{ID: "1", Name: "t", Arguments: "{not json"})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid JSON arguments")
}

func TestExecuteHandlerError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Entry{
		Definition: models.ToolDefinition{Name: "boom"},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			return nil, errors.New("exploded")
		},
		Source: models.SourceBuiltin,
	}))
	x := NewExecutor(r)
	result := x.Execute(context.Background(), models.ToolCall{ID: "1", Name: "boom", Arguments: "{}"})
	require.False(t, result.Success)
	assert.Equal(t, "exploded", result.Error)
}

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Entry{
		Definition: models.ToolDefinition{Name: "ok"},
		Handler:    echoHandler,
		Source:     models.SourceBuiltin,
	}))
	x := NewExecutor(r)
	result := x.Execute(context.Background(), models.ToolCall{ID: "1", Name: "ok", Arguments: ""})
	require.True(t, result.Success)
	assert.Equal(t, "ok", result.Output)
}

func TestExecuteAppliesResultGuard(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Entry{
		Definition: models.ToolDefinition{Name: "verbose"},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			return "0123456789", nil
		},
		Source: models.SourceBuiltin,
	}))
	x := NewExecutor(r)
	x.Guard = ResultGuard{MaxOutputChars: 4}
	result := x.Execute(context.Background(), models.ToolCall{ID: "1", Name: "verbose", Arguments: "{}"})
	require.True(t, result.Success)
	assert.Contains(t, result.Output, "0123")
	assert.Contains(t, result.Output, "truncated")
}
