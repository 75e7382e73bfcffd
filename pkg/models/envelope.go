// Package models provides the canonical domain types shared across the
// gateway, agent loop, orchestrator, and memory engine.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnvelopeType identifies the kind of message carried on the bus.
type EnvelopeType string

const (
	TypeTaskRequest  EnvelopeType = "task.request"
	TypeTaskResponse EnvelopeType = "task.response"
	TypeTaskDone     EnvelopeType = "task.done"
	TypeTaskError    EnvelopeType = "task.error"
	TypeToolInvoke   EnvelopeType = "tool.invoke"
)

// Envelope is a CloudEvents-1.0 shaped record. It is the single message
// shape that crosses the WebSocket boundary and the message bus.
type Envelope struct {
	ID             string            `json:"id"`
	Type           EnvelopeType      `json:"type"`
	Source         string            `json:"source"`
	Target         string            `json:"target"`
	Time           time.Time         `json:"time"`
	Data           any               `json:"data,omitempty"`
	CorrelationID  string            `json:"correlationId,omitempty"`
	CausationID    string            `json:"causationId,omitempty"`
	ReplyTo        string            `json:"replyTo,omitempty"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty"`
	SequenceNumber int64             `json:"sequenceNumber,omitempty"`
	TTL            time.Duration     `json:"ttl,omitempty"`
	TraceContext   string            `json:"traceContext,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope builds an envelope with a fresh UUID and the current time,
// honoring the correlation-ID default-to-request-ID invariant.
func NewEnvelope(typ EnvelopeType, source, target string, data any) *Envelope {
	id := uuid.NewString()
	return &Envelope{
		ID:     id,
		Type:   typ,
		Source: source,
		Target: target,
		Time:   time.Now().UTC(),
		Data:   data,
	}
}

// EffectiveCorrelationID returns CorrelationID, defaulting to ID when unset.
func (e *Envelope) EffectiveCorrelationID() string {
	if e.CorrelationID != "" {
		return e.CorrelationID
	}
	return e.ID
}

// DedupKey returns the key used for idempotency lookups: IdempotencyKey
// when set, else ID.
func (e *Envelope) DedupKey() string {
	if e.IdempotencyKey != "" {
		return e.IdempotencyKey
	}
	return e.ID
}

// Target URI schemes recognized by the router.
const (
	SchemeAgent   = "agent"
	SchemeTopic   = "topic"
	SchemeGateway = "gateway"
	SchemeChannel = "channel"
)

// ParsedTarget is the result of splitting a `scheme://path` target URI.
type ParsedTarget struct {
	Scheme string
	Path   string
}

// ParseTarget splits a target URI of the form `scheme://path`.
func ParseTarget(uri string) (ParsedTarget, error) {
	parts := strings.SplitN(uri, "://", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ParsedTarget{}, fmt.Errorf("%w: %q", ErrInvalidTarget, uri)
	}
	return ParsedTarget{Scheme: parts[0], Path: parts[1]}, nil
}
