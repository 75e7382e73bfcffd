package memory

import (
	"context"
	"log/slog"

	"github.com/agentplane/core/internal/hooks"
	"github.com/agentplane/core/pkg/models"
)

// FlushHandler implements the memory_flush hook: chunk the turn's full
// message history, score each chunk's importance, batch-embed, and
// upsert. Embedding failure is logged and swallowed — BM25 search
// still works over the chunk's content.
type FlushHandler struct {
	Store    *Store
	Embedder Embedder
	Chunking ChunkConfig
	Logger   *slog.Logger
}

// NewFlushHandler builds a FlushHandler. embedder may be nil to skip
// embedding entirely (BM25-only deployments).
func NewFlushHandler(store *Store, embedder Embedder, chunking ChunkConfig, logger *slog.Logger) *FlushHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if chunking.TargetTokens == 0 {
		chunking = DefaultChunkConfig()
	}
	return &FlushHandler{Store: store, Embedder: embedder, Chunking: chunking, Logger: logger.With("component", "memory")}
}

// Register installs the handler under hooks.EventMemoryFlush.
func (h *FlushHandler) Register(registry *hooks.Registry) string {
	return registry.Register(hooks.EventMemoryFlush, h.Handle, hooks.WithName("memory-flush"), hooks.WithPriority(hooks.PriorityNormal))
}

// Handle is the hooks.Handler entry point. It returns hc unchanged on
// every path, per the memory_flush contract.
func (h *FlushHandler) Handle(ctx context.Context, hc *hooks.Context) (*hooks.Context, error) {
	rawMessages, ok := hc.Get("messages")
	if !ok {
		return hc, nil
	}
	messages, ok := rawMessages.([]models.Message)
	if !ok || len(messages) == 0 {
		return hc, nil
	}
	agentID, _ := hc.Get("agentId")
	sessionID, _ := hc.Get("sessionId")

	text := renderHistory(messages)
	parts := chunkText(text, h.Chunking)
	if len(parts) == 0 {
		return hc, nil
	}

	chunks := make([]models.MemoryChunk, len(parts))
	for i, part := range parts {
		chunks[i] = models.MemoryChunk{
			AgentID:    asString(agentID),
			SessionID:  asString(sessionID),
			Content:    part,
			Importance: scoreImportance(part),
			TokenCount: len(part) / charsPerToken,
			SourceType: "conversation",
			ChunkIndex: i,
		}
	}

	if h.Embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, err := h.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			h.Logger.Warn("memory flush embedding failed, continuing without vectors", "error", err)
		} else {
			for i := range chunks {
				if i < len(vectors) {
					chunks[i].Embedding = vectors[i]
				}
			}
		}
	}

	if err := h.Store.Upsert(ctx, chunks); err != nil {
		h.Logger.Warn("memory flush upsert failed", "error", err)
	}

	return hc, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
