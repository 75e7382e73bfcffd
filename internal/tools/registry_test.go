package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, args json.RawMessage) (any, error) {
	return "ok", nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Entry{
		Definition: models.ToolDefinition{Name: "read_file"},
		Handler:    echoHandler,
		Source:     models.SourceBuiltin,
	})
	require.NoError(t, err)

	entry, ok := r.Get("read_file")
	require.True(t, ok)
	assert.Equal(t, models.SourceBuiltin, entry.Source)
}

func TestRegistryConflictAcrossSources(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Entry{
		Definition: models.ToolDefinition{Name: "dup"},
		Handler:    echoHandler,
		Source:     models.SourceBuiltin,
	}))
	err := r.Register(Entry{
		Definition: models.ToolDefinition{Name: "dup"},
		Handler:    echoHandler,
		Source:     models.SourcePlugin,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrToolConflict)
}

func TestEffectiveBuiltinsExcludesUnpinnedMCP(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Entry{
		Definition: models.ToolDefinition{Name: "builtin_tool"},
		Handler:    echoHandler,
		Source:     models.SourceBuiltin,
	}))
	require.NoError(t, r.Register(Entry{
		Definition: models.ToolDefinition{Name: "mcp_tool"},
		Handler:    echoHandler,
		Source:     models.SourceMCP,
		MCPServer:  "srv1",
	}))

	defs := r.EffectiveBuiltins(nil, nil)
	names := namesOf(defs)
	assert.Contains(t, names, "builtin_tool")
	assert.NotContains(t, names, "mcp_tool")

	pinned := r.EffectiveBuiltins([]string{"mcp_tool"}, nil)
	assert.Contains(t, namesOf(pinned), "mcp_tool")
}

func namesOf(defs []models.ToolDefinition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}
