package bus

import (
	"testing"

	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSubjectAgentAndTopic(t *testing.T) {
	subject, err := DeriveSubject(models.ParsedTarget{Scheme: models.SchemeAgent, Path: "concierge-1"})
	require.NoError(t, err)
	assert.Equal(t, "agent.concierge-1.inbox", subject)

	subject, err = DeriveSubject(models.ParsedTarget{Scheme: models.SchemeTopic, Path: "billing"})
	require.NoError(t, err)
	assert.Equal(t, "events.agent.billing", subject)
}

func TestDeriveSubjectRejectsUnknownScheme(t *testing.T) {
	_, err := DeriveSubject(models.ParsedTarget{Scheme: "mailbox", Path: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidTarget)
}
