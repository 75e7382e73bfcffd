// Package bus implements the message gateway's transport layer: subject
// derivation, durable/non-durable publish, idempotency, per-lane FIFO
// ordering, and breaker-wrapped outbound calls.
package bus

import (
	"fmt"

	"github.com/agentplane/core/pkg/models"
)

// DeriveSubject maps a parsed target to its NATS subject: "agent"
// targets a durable workqueue inbox, "topic" targets an interest
// stream; any other scheme is rejected.
func DeriveSubject(target models.ParsedTarget) (string, error) {
	switch target.Scheme {
	case models.SchemeAgent:
		return fmt.Sprintf("agent.%s.inbox", target.Path), nil
	case models.SchemeTopic:
		return fmt.Sprintf("events.agent.%s", target.Path), nil
	default:
		return "", fmt.Errorf("%w: scheme %q", models.ErrInvalidTarget, target.Scheme)
	}
}

// AgentInboxMaxDeliver and AgentInboxAckWaitSeconds are the durable
// workqueue consumer parameters for agent inboxes.
const (
	AgentInboxMaxDeliver     = 5
	AgentInboxAckWaitSeconds = 30
)
