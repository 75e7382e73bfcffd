package agent

import (
	"context"
	"testing"

	"github.com/agentplane/core/internal/hooks"
	"github.com/agentplane/core/internal/llm"
	"github.com/agentplane/core/internal/tools"
	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerDispatchRequiresReady(t *testing.T) {
	m := NewManager()
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{
		{{Type: llm.ChunkDone, FinishReason: llm.FinishEndTurn}},
	}}
	loop := NewLoop(provider, tools.NewExecutor(tools.NewRegistry()), hooks.NewRegistry(nil), nil, nil, nil, Config{MaxTurns: 3})

	inst, err := m.Register("agent-1", "be helpful", loop)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, inst.Control.Status())

	events, err := m.Dispatch(context.Background(), "agent-1", models.Message{Role: models.RoleUser, Content: "hi"}, nil)
	require.NoError(t, err)
	for range events {
	}

	require.NoError(t, inst.Control.Transition(models.StatusRunning))
	_, err = m.Dispatch(context.Background(), "agent-1", models.Message{Role: models.RoleUser, Content: "again"}, nil)
	assert.Error(t, err)

	_, err = m.Dispatch(context.Background(), "missing", models.Message{}, nil)
	assert.Error(t, err)
}

func TestManagerTerminateFromReady(t *testing.T) {
	m := NewManager()
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{
		{{Type: llm.ChunkDone, FinishReason: llm.FinishEndTurn}},
	}}
	loop := NewLoop(provider, tools.NewExecutor(tools.NewRegistry()), hooks.NewRegistry(nil), nil, nil, nil, Config{MaxTurns: 3})
	_, err := m.Register("agent-2", "be helpful", loop)
	require.NoError(t, err)

	require.NoError(t, m.Terminate("agent-2"))
	status, err := m.Status("agent-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTerminated, status)
}
