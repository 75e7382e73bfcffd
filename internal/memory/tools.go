package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentplane/core/internal/tools"
	"github.com/agentplane/core/pkg/models"
)

// Tools wraps a Store and Engine behind tools.Handler-compatible
// methods for the memory_search and memory_get builtins.
type Tools struct {
	Store    *Store
	Engine   *Engine
	Embedder Embedder
}

// NewTools builds a Tools instance. embedder may be nil; memory_search
// then runs BM25-only.
func NewTools(store *Store, engine *Engine, embedder Embedder) *Tools {
	return &Tools{Store: store, Engine: engine, Embedder: embedder}
}

type searchArgs struct {
	Query         string  `json:"query"`
	AgentID       string  `json:"agentId"`
	SessionID     string  `json:"sessionId"`
	MinImportance float64 `json:"minImportance"`
	TopK          int     `json:"topK"`
}

// Search implements the memory_search tool: hybrid BM25+vector search
// scoped by agentId/sessionId/minImportance.
func (t *Tools) Search(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid memory_search arguments: %w", err)
	}
	if args.Query == "" {
		return nil, fmt.Errorf("memory_search: query is required")
	}

	req := SearchRequest{
		Query:         args.Query,
		AgentID:       args.AgentID,
		SessionID:     args.SessionID,
		MinImportance: args.MinImportance,
		TopK:          args.TopK,
	}
	if t.Embedder != nil {
		if vec, err := t.Embedder.Embed(ctx, args.Query); err == nil {
			req.QueryEmbedding = vec
		}
	}

	return t.Engine.Search(ctx, req)
}

type getArgs struct {
	ID string `json:"id"`
}

// Get implements the memory_get tool: fetch a single chunk by ID.
func (t *Tools) Get(ctx context.Context, raw json.RawMessage) (any, error) {
	var args getArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid memory_get arguments: %w", err)
	}
	if args.ID == "" {
		return nil, fmt.Errorf("memory_get: id is required")
	}
	chunk, err := t.Store.Get(ctx, args.ID)
	if err != nil {
		return nil, fmt.Errorf("memory_get: %w", err)
	}
	return chunk, nil
}

// RegisterTools installs memory_search and memory_get into registry
// under models.SourceMemory.
func RegisterTools(registry *tools.Registry, t *Tools) error {
	entries := []tools.Entry{
		{
			Source: models.SourceMemory,
			Definition: models.ToolDefinition{
				Name:        "memory_search",
				Description: "Search episodic memory for chunks relevant to a query, via hybrid BM25+vector ranking.",
				InputSchema: map[string]any{
					"type":     "object",
					"required": []string{"query"},
					"properties": map[string]any{
						"query":         map[string]any{"type": "string"},
						"agentId":       map[string]any{"type": "string"},
						"sessionId":     map[string]any{"type": "string"},
						"minImportance": map[string]any{"type": "number"},
						"topK":          map[string]any{"type": "integer"},
					},
				},
				Annotations: models.ToolAnnotations{RiskLevel: models.RiskGreen},
			},
			Handler: t.Search,
		},
		{
			Source: models.SourceMemory,
			Definition: models.ToolDefinition{
				Name:        "memory_get",
				Description: "Fetch a single episodic memory chunk by ID.",
				InputSchema: map[string]any{
					"type":     "object",
					"required": []string{"id"},
					"properties": map[string]any{
						"id": map[string]any{"type": "string"},
					},
				},
				Annotations: models.ToolAnnotations{RiskLevel: models.RiskGreen},
			},
			Handler: t.Get,
		},
	}
	for _, e := range entries {
		if err := registry.Register(e); err != nil {
			return err
		}
	}
	return nil
}
