package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/agentplane/core/pkg/models"
	"github.com/google/uuid"
)

// Priority determines the order handlers are called; lower runs first.
type Priority int

const (
	PriorityHighest Priority = 0
	PriorityHigh    Priority = 25
	PriorityNormal  Priority = 50
	PriorityLow     Priority = 75
	PriorityLowest  Priority = 100
)

// Registration is a registered handler for one event.
type Registration struct {
	ID       string
	Event    Event
	Handler  Handler
	Priority Priority
	Name     string
}

// Registry manages hook registrations and serial, priority-ordered
// dispatch with context chaining.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Event][]*Registration
	byID     map[string]*Registration
	logger   *slog.Logger
}

// NewRegistry creates an empty hook registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[Event][]*Registration),
		byID:     make(map[string]*Registration),
		logger:   logger.With("component", "hooks"),
	}
}

// RegisterOption configures a registration.
type RegisterOption func(*Registration)

// WithPriority sets the handler priority.
func WithPriority(p Priority) RegisterOption {
	return func(r *Registration) { r.Priority = p }
}

// WithName sets a human-readable name for debugging.
func WithName(name string) RegisterOption {
	return func(r *Registration) { r.Name = name }
}

// Register adds a handler for an event and returns its registration ID.
func (r *Registry) Register(event Event, handler Handler, opts ...RegisterOption) string {
	reg := &Registration{
		ID:       uuid.NewString(),
		Event:    event,
		Handler:  handler,
		Priority: PriorityNormal,
	}
	for _, opt := range opts {
		opt(reg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = append(r.handlers[event], reg)
	r.byID[reg.ID] = reg
	sort.SliceStable(r.handlers[event], func(i, j int) bool {
		return r.handlers[event][i].Priority < r.handlers[event][j].Priority
	})
	return reg.ID
}

// Unregister removes a handler by its registration ID.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	handlers := r.handlers[reg.Event]
	for i, h := range handlers {
		if h.ID == id {
			r.handlers[reg.Event] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	return true
}

// HandlerCount returns the number of handlers registered for an event.
func (r *Registry) HandlerCount(event Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[event])
}

// Fire dispatches hc through every handler registered for hc.Event, in
// non-decreasing priority order, exactly once each. Each handler's
// returned context becomes the next handler's input. A *models.HookBlockError
// from any handler is propagated unchanged and stops the chain; any other
// error also stops the chain and is wrapped with the offending handler's
// name.
func (r *Registry) Fire(ctx context.Context, hc *Context) (*Context, error) {
	if hc == nil {
		return nil, fmt.Errorf("hook context is nil")
	}

	r.mu.RLock()
	handlers := make([]*Registration, len(r.handlers[hc.Event]))
	copy(handlers, r.handlers[hc.Event])
	r.mu.RUnlock()

	current := hc
	for _, reg := range handlers {
		next, err := r.call(ctx, reg, current)
		if err != nil {
			if hb, ok := models.IsHookBlock(err); ok {
				return current, hb
			}
			r.logger.Warn("hook handler error",
				"event", hc.Event, "handler", reg.Name, "error", err)
			return current, fmt.Errorf("hook %q (handler %s): %w", hc.Event, reg.Name, err)
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

func (r *Registry) call(ctx context.Context, reg *Registration, hc *Context) (next *Context, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panic in %s: %v", reg.Name, p)
		}
	}()
	return reg.Handler(ctx, hc)
}
