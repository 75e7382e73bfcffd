package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplane/core/internal/hooks"
	"github.com/agentplane/core/pkg/models"
)

type fakeEmbedder struct {
	dim     int
	err     error
	batches [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func TestFlushHandlerChunksScoresAndUpserts(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{dim: 3}
	handler := NewFlushHandler(store, embedder, ChunkConfig{TargetTokens: 50, OverlapTokens: 5, MaxChunkTokens: 60}, nil)

	messages := []models.Message{
		{Role: models.RoleUser, Content: "we decided to always use the new deploy pipeline"},
		{Role: models.RoleAssistant, Content: "understood, I will remember that"},
	}
	hc := hooks.NewContext(hooks.EventMemoryFlush).
		With("messages", messages).
		With("agentId", "agent-1").
		With("sessionId", "session-1")

	out, err := handler.Handle(context.Background(), hc)
	require.NoError(t, err)
	assert.Same(t, hc, out)
	require.NotEmpty(t, embedder.batches)

	candidates, err := store.allCandidates(context.Background(), candidateFilter{AgentID: "agent-1", SessionID: "session-1"})
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.NotEmpty(t, candidates[0].Embedding)
	assert.Greater(t, candidates[0].Importance, 0.0)
}

func TestFlushHandlerEmbeddingFailureIsNonFatal(t *testing.T) {
	store := newTestStore(t)
	embedder := &fakeEmbedder{dim: 3, err: errors.New("provider unavailable")}
	handler := NewFlushHandler(store, embedder, DefaultChunkConfig(), nil)

	messages := []models.Message{{Role: models.RoleUser, Content: "important decision made today"}}
	hc := hooks.NewContext(hooks.EventMemoryFlush).With("messages", messages).With("agentId", "a1").With("sessionId", "s1")

	_, err := handler.Handle(context.Background(), hc)
	require.NoError(t, err)

	candidates, err := store.allCandidates(context.Background(), candidateFilter{AgentID: "a1"})
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Empty(t, candidates[0].Embedding)
}

func TestFlushHandlerEmptyHistoryIsNoop(t *testing.T) {
	store := newTestStore(t)
	handler := NewFlushHandler(store, nil, DefaultChunkConfig(), nil)

	hc := hooks.NewContext(hooks.EventMemoryFlush).With("messages", []models.Message{})
	out, err := handler.Handle(context.Background(), hc)
	require.NoError(t, err)
	assert.Same(t, hc, out)

	candidates, err := store.allCandidates(context.Background(), candidateFilter{})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFlushHandlerRegistersUnderMemoryFlushEvent(t *testing.T) {
	store := newTestStore(t)
	handler := NewFlushHandler(store, nil, DefaultChunkConfig(), nil)
	registry := hooks.NewRegistry(nil)
	handler.Register(registry)
	assert.Equal(t, 1, registry.HandlerCount(hooks.EventMemoryFlush))
}
