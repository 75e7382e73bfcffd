package session

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/agentplane/core/internal/hooks"
	"github.com/agentplane/core/pkg/models"
)

// Recorder implements the turn_end hook: append the turn's assistant
// message and tool results to the session's append-only log, creating
// the session file lazily on first use.
type Recorder struct {
	Store  *Store
	Logger *slog.Logger

	mu      sync.Mutex
	started map[string]bool
}

// NewRecorder builds a Recorder writing through store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{Store: store, Logger: logger.With("component", "session"), started: make(map[string]bool)}
}

// Register installs the handler under hooks.EventTurnEnd.
func (r *Recorder) Register(registry *hooks.Registry) string {
	return registry.Register(hooks.EventTurnEnd, r.Handle, hooks.WithName("session-recorder"), hooks.WithPriority(hooks.PriorityNormal))
}

// Handle is the hooks.Handler entry point. It returns hc unchanged on
// every path; a write failure is logged and swallowed rather than
// vetoing the turn that already completed.
func (r *Recorder) Handle(ctx context.Context, hc *hooks.Context) (*hooks.Context, error) {
	agentID, _ := hc.Get("agentId")
	sessionID, _ := hc.Get("sessionId")
	agentIDStr, _ := agentID.(string)
	sessionIDStr, _ := sessionID.(string)
	if agentIDStr == "" || sessionIDStr == "" {
		return hc, nil
	}

	if err := r.ensureSession(agentIDStr, sessionIDStr); err != nil {
		r.Logger.Warn("create session log", "agentId", agentIDStr, "sessionId", sessionIDStr, "error", err)
		return hc, nil
	}

	now := time.Now()
	if raw, ok := hc.Get("assistantMessage"); ok {
		if msg, ok := raw.(models.Message); ok {
			record := models.SessionRecord{Kind: models.RecordMessage, Message: &msg, Timestamp: now}
			if err := r.Store.Append(agentIDStr, sessionIDStr, record); err != nil {
				r.Logger.Warn("append session message", "sessionId", sessionIDStr, "error", err)
			}
		}
	}

	if raw, ok := hc.Get("toolResults"); ok {
		if results, ok := raw.([]models.ToolResult); ok {
			for i := range results {
				record := models.SessionRecord{Kind: models.RecordToolResult, Result: &results[i], Timestamp: now}
				if err := r.Store.Append(agentIDStr, sessionIDStr, record); err != nil {
					r.Logger.Warn("append session tool result", "sessionId", sessionIDStr, "error", err)
				}
			}
		}
	}

	return hc, nil
}

// ensureSession creates the session log on first write for this
// (agentID, sessionID) pair within this Recorder's lifetime.
func (r *Recorder) ensureSession(agentID, sessionID string) error {
	key := agentID + "/" + sessionID
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started[key] {
		return nil
	}
	err := r.Store.Create(models.SessionHeader{
		SessionID: sessionID,
		AgentID:   agentID,
		CreatedAt: time.Now(),
	})
	if err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	r.started[key] = true
	return nil
}
