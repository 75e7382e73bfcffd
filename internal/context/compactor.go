package context

import (
	"context"
	"fmt"

	"github.com/agentplane/core/internal/hooks"
	"github.com/agentplane/core/pkg/models"
)

// Summarizer produces a prose summary of a message history, backed by
// an LLM call in production.
type Summarizer interface {
	Summarize(ctx context.Context, history []models.Message) (string, error)
}

// Config bounds when compaction triggers.
type Config struct {
	ContextWindow int // tokens
	ReserveTokens int
	TailExchanges int // number of trailing exchanges kept verbatim; default 3
}

// DefaultConfig retains a trailing three-exchange tail after summarizing.
func DefaultConfig() Config {
	return Config{ContextWindow: 128_000, ReserveTokens: 8_000, TailExchanges: 3}
}

// Compactor enforces the context window budget by summarizing old
// history and firing memory_flush then session_compact hooks in order.
type Compactor struct {
	cfg        Config
	summarizer Summarizer
	hooks      *hooks.Registry
	countTok   func([]models.Message) int
}

// NewCompactor builds a Compactor. countTok defaults to a 4-chars-per-
// token approximation when nil.
func NewCompactor(cfg Config, summarizer Summarizer, registry *hooks.Registry, countTok func([]models.Message) int) *Compactor {
	if cfg.TailExchanges <= 0 {
		cfg.TailExchanges = 3
	}
	if countTok == nil {
		countTok = func(msgs []models.Message) int { return CharLen(msgs) / 4 }
	}
	return &Compactor{cfg: cfg, summarizer: summarizer, hooks: registry, countTok: countTok}
}

// NeedsCompaction reports whether conv's full message set has reached
// the window budget: countTokens(messages) >= contextWindow - reserveTokens.
func (c *Compactor) NeedsCompaction(conv *Conversation) bool {
	return c.countTok(conv.Messages()) >= c.cfg.ContextWindow-c.cfg.ReserveTokens
}

// Compact fires memory_flush over the full history, summarizes
// everything but the system message and the trailing exchanges, then
// replaces the conversation body with
// [summary message] + [tail exchanges verbatim], and fires
// session_compact. The memory_flush -> session_compact ordering is
// guaranteed even if either handler chain is empty. agentID and
// sessionID are threaded into the memory_flush hook context so
// handlers can scope what they persist.
func (c *Compactor) Compact(ctx context.Context, agentID, sessionID string, conv *Conversation) error {
	full := conv.Messages()

	flushCtx := hooks.NewContext(hooks.EventMemoryFlush).
		With("messages", full).
		With("agentId", agentID).
		With("sessionId", sessionID)
	if _, err := c.hooks.Fire(ctx, flushCtx); err != nil {
		return fmt.Errorf("memory_flush hook: %w", err)
	}

	body := conv.Body()
	if len(body) == 0 {
		return nil
	}

	tailCount := c.cfg.TailExchanges * 2 // user+assistant per exchange
	if tailCount > len(body) {
		tailCount = len(body)
	}
	toSummarize := body[:len(body)-tailCount]
	tail := body[len(body)-tailCount:]

	var newBody []models.Message
	if len(toSummarize) > 0 {
		summary, err := c.summarizer.Summarize(ctx, toSummarize)
		if err != nil {
			return fmt.Errorf("summarize history: %w", err)
		}
		newBody = append(newBody, models.Message{Role: models.RoleAssistant, Content: summary})
	}
	newBody = append(newBody, tail...)
	conv.Replace(newBody)

	compactCtx := hooks.NewContext(hooks.EventSessionCompact).
		With("droppedCount", len(toSummarize)).
		With("keptCount", len(newBody))
	if _, err := c.hooks.Fire(ctx, compactCtx); err != nil {
		return fmt.Errorf("session_compact hook: %w", err)
	}
	return nil
}
