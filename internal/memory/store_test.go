package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplane/core/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreUpsertAndGetRoundTrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunks := []models.MemoryChunk{
		{AgentID: "a1", SessionID: "s1", Content: "the user prefers dark mode", Importance: 2, SourceType: "conversation"},
	}
	require.NoError(t, store.Upsert(ctx, chunks))
	require.NotEmpty(t, chunks[0].ID)

	got, err := store.Get(ctx, chunks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "the user prefers dark mode", got.Content)
	assert.Equal(t, 1.0, got.Importance) // clamped at write
}

func TestStoreEmbeddingRoundTripsThroughBlobEncoding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	embedding := []float32{0.1, -0.2, 0.3, 0.0}
	chunks := []models.MemoryChunk{
		{AgentID: "a1", SessionID: "s1", Content: "x", Embedding: embedding},
	}
	require.NoError(t, store.Upsert(ctx, chunks))

	got, err := store.Get(ctx, chunks[0].ID)
	require.NoError(t, err)
	require.Len(t, got.Embedding, len(embedding))
	for i := range embedding {
		assert.InDelta(t, embedding[i], got.Embedding[i], 1e-6)
	}
}

func TestStoreBM25CandidatesScopedByAgentAndSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []models.MemoryChunk{
		{AgentID: "a1", SessionID: "s1", Content: "the rocket launched successfully"},
		{AgentID: "a2", SessionID: "s2", Content: "the rocket exploded on launch"},
	}))

	candidates, err := store.bm25Candidates(ctx, "rocket", candidateFilter{AgentID: "a1"}, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "a1", candidates[0].Chunk.AgentID)
}

func TestStoreAllCandidatesAppliesDateFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := models.MemoryChunk{AgentID: "a1", SessionID: "s1", Content: "old memory", CreatedAt: time.Now().Add(-90 * 24 * time.Hour)}
	recent := models.MemoryChunk{AgentID: "a1", SessionID: "s1", Content: "new memory", CreatedAt: time.Now()}
	require.NoError(t, store.Upsert(ctx, []models.MemoryChunk{old, recent}))

	candidates, err := store.allCandidates(ctx, candidateFilter{DateFrom: time.Now().Add(-24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "new memory", candidates[0].Content)
}
