package session

import (
	"context"
	"testing"

	"github.com/agentplane/core/internal/hooks"
	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCreatesSessionAndAppendsTurn(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	recorder := NewRecorder(store, nil)

	hc := hooks.NewContext(hooks.EventTurnEnd).
		With("agentId", "a1").
		With("sessionId", "s1").
		With("assistantMessage", models.Message{Role: models.RoleAssistant, Content: "hello"}).
		With("toolResults", []models.ToolResult{{ToolCallID: "t1", Success: true, Output: "ok"}})

	out, err := recorder.Handle(context.Background(), hc)
	require.NoError(t, err)
	assert.Same(t, hc, out)

	recovered, err := store.Recover("a1", "s1")
	require.NoError(t, err)
	require.Len(t, recovered.Records, 2)
	assert.Equal(t, models.RecordMessage, recovered.Records[0].Kind)
	assert.Equal(t, "hello", recovered.Records[0].Message.Content)
	assert.Equal(t, models.RecordToolResult, recovered.Records[1].Kind)
	assert.Equal(t, "t1", recovered.Records[1].Result.ToolCallID)
}

func TestRecorderReusesExistingSessionOnSecondTurn(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	recorder := NewRecorder(store, nil)

	for i := 0; i < 2; i++ {
		hc := hooks.NewContext(hooks.EventTurnEnd).
			With("agentId", "a1").
			With("sessionId", "s1").
			With("assistantMessage", models.Message{Role: models.RoleAssistant, Content: "turn"}).
			With("toolResults", []models.ToolResult{})
		_, err := recorder.Handle(context.Background(), hc)
		require.NoError(t, err)
	}

	recovered, err := store.Recover("a1", "s1")
	require.NoError(t, err)
	assert.Len(t, recovered.Records, 2)
}

func TestRecorderIgnoresTurnEndWithoutSessionContext(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	recorder := NewRecorder(store, nil)

	hc := hooks.NewContext(hooks.EventTurnEnd).
		With("assistantMessage", models.Message{Role: models.RoleAssistant, Content: "hello"})

	out, err := recorder.Handle(context.Background(), hc)
	require.NoError(t, err)
	assert.Same(t, hc, out)
}
