// Package tools implements the unified tool registry, the risk/policy
// gated executor, and MCP meta-tool forwarding.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentplane/core/pkg/models"
)

// Handler is the function a registry entry invokes to execute a tool.
// args is the already-parsed JSON object delivered by the executor.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Entry is a tool registry entry: definition + handler + provenance.
type Entry struct {
	Definition models.ToolDefinition
	Handler    Handler
	Source     models.ToolSource
	MCPServer  string // set only when Source == SourceMCP
}

// Registry is the single source of truth for tool definitions and
// handlers. Tool names are globally unique across sources.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry. Registering over an existing name from a
// different source is a conflict; re-registering the same source
// replaces it (hot reload of builtins/plugins).
func (r *Registry) Register(e Entry) error {
	if e.Definition.Name == "" {
		return fmt.Errorf("%w: empty tool name", models.ErrToolValidation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[e.Definition.Name]; ok && existing.Source != e.Source {
		return fmt.Errorf("%w: %q already registered by %s", models.ErrToolConflict, e.Definition.Name, existing.Source)
	}
	r.entries[e.Definition.Name] = e
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Get returns an entry by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns all registered entries.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Definitions returns the ToolDefinition for every entry whose name
// appears in allowed; pass nil to get every registered definition.
func (r *Registry) Definitions(allowed func(name string) bool) []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDefinition, 0, len(r.entries))
	for name, e := range r.entries {
		if allowed != nil && !allowed(name) {
			continue
		}
		out = append(out, e.Definition)
	}
	return out
}

// EffectiveBuiltins returns the definitions of every non-MCP tool, plus
// any MCP tool explicitly pinned by the agent, filtered by the allowed
// predicate.
func (r *Registry) EffectiveBuiltins(mcpPinned []string, allowed func(name string) bool) []models.ToolDefinition {
	pinned := make(map[string]bool, len(mcpPinned))
	for _, n := range mcpPinned {
		pinned[n] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDefinition, 0, len(r.entries))
	for name, e := range r.entries {
		if e.Source == models.SourceMCP && !pinned[name] {
			continue
		}
		if allowed != nil && !allowed(name) {
			continue
		}
		out = append(out, e.Definition)
	}
	return out
}
