package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplane/core/internal/llm"
	"github.com/agentplane/core/pkg/models"
)

type fakeProvider struct {
	seen []models.Message
}

func (f *fakeProvider) Stream(ctx context.Context, messages []models.Message, tools []models.ToolDefinition) (<-chan llm.StreamChunk, error) {
	f.seen = messages
	out := make(chan llm.StreamChunk, 2)
	out <- llm.StreamChunk{Type: llm.ChunkTextDelta, TextDelta: "earlier the user asked about deploys"}
	out <- llm.StreamChunk{Type: llm.ChunkDone, FinishReason: llm.FinishStop}
	close(out)
	return out, nil
}

func TestLLMSummarizerPrependsInstructionAndReturnsText(t *testing.T) {
	provider := &fakeProvider{}
	s := NewLLMSummarizer(provider)

	history := []models.Message{{Role: models.RoleUser, Content: "how do we deploy?"}}
	text, err := s.Summarize(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "earlier the user asked about deploys", text)

	require.Len(t, provider.seen, 2)
	assert.Equal(t, models.RoleSystem, provider.seen[0].Role)
	assert.Equal(t, history[0], provider.seen[1])
}
