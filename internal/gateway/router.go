package gateway

import (
	"encoding/json"
	"sync"

	"github.com/agentplane/core/pkg/models"
)

// Frame is the JSON shape shipped to a WebSocket client.
type Frame struct {
	Error   string           `json:"error,omitempty"`
	Payload *models.Envelope `json:"payload,omitempty"`
}

// Sender delivers a JSON frame to one connection; *wsConn implements
// this in production, a fake in tests.
type Sender interface {
	SendJSON(frame Frame) error
	// CloseGoingAway sends a 1001 (going-away) close control frame and
	// tears the connection down, used during graceful process shutdown.
	CloseGoingAway(reason string) error
}

// ResponseRouter maps a correlation ID to the session awaiting its
// reply, and ships arriving envelopes as JSON frames to that session's
// socket. Entries with no open session are dropped silently -- the
// client reconnect case.
type ResponseRouter struct {
	mu       sync.RWMutex
	byCorrel map[string]string // correlationID -> sessionID
	sessions map[string]Sender // sessionID -> live socket
}

// NewResponseRouter builds an empty router.
func NewResponseRouter() *ResponseRouter {
	return &ResponseRouter{
		byCorrel: make(map[string]string),
		sessions: make(map[string]Sender),
	}
}

// RegisterSession makes sessionID's socket reachable for delivery.
func (r *ResponseRouter) RegisterSession(sessionID string, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = sender
}

// CloseSession removes sessionID's socket and every correlation
// tracked for it.
func (r *ResponseRouter) CloseSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	for correl, sid := range r.byCorrel {
		if sid == sessionID {
			delete(r.byCorrel, correl)
		}
	}
}

// Track associates a correlation ID with the session awaiting its reply.
func (r *ResponseRouter) Track(correlationID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCorrel[correlationID] = sessionID
}

// Untrack removes a correlation ID's tracking explicitly.
func (r *ResponseRouter) Untrack(correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byCorrel, correlationID)
}

// Shutdown sends a going-away close frame to every live session and
// clears all tracking, used during graceful process shutdown.
func (r *ResponseRouter) Shutdown(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sender := range r.sessions {
		_ = sender.CloseGoingAway(reason)
	}
	r.sessions = make(map[string]Sender)
	r.byCorrel = make(map[string]string)
}

// Route delivers env to the session tracking its correlation ID. A
// missing session (never tracked, or closed since) is a silent no-op.
func (r *ResponseRouter) Route(env *models.Envelope) error {
	r.mu.RLock()
	sessionID, tracked := r.byCorrel[env.EffectiveCorrelationID()]
	var sender Sender
	if tracked {
		sender = r.sessions[sessionID]
	}
	r.mu.RUnlock()

	if !tracked || sender == nil {
		return nil
	}
	return sender.SendJSON(Frame{Payload: env})
}

// ParseInbound decodes an inbound WebSocket text frame into an Envelope,
// returning the single-frame error contract on malformed JSON.
func ParseInbound(raw []byte) (*models.Envelope, error) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// InvalidFormatFrame is the exact frame shipped on inbound parse failure.
func InvalidFormatFrame() Frame {
	return Frame{Error: "Invalid message format"}
}
