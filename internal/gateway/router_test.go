package gateway

import (
	"testing"

	"github.com/agentplane/core/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent        []Frame
	closed      bool
	closeReason string
}

func (f *fakeSender) SendJSON(frame Frame) error {
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeSender) CloseGoingAway(reason string) error {
	f.closed = true
	f.closeReason = reason
	return nil
}

func TestRouteDeliversToTrackedSession(t *testing.T) {
	r := NewResponseRouter()
	sender := &fakeSender{}
	r.RegisterSession("sess-1", sender)
	r.Track("corr-1", "sess-1")

	env := &models.Envelope{ID: "evt-1", CorrelationID: "corr-1"}
	require.NoError(t, r.Route(env))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, env, sender.sent[0].Payload)
}

func TestRouteDropsUntrackedEnvelopeSilently(t *testing.T) {
	r := NewResponseRouter()
	env := &models.Envelope{ID: "evt-1", CorrelationID: "corr-unknown"}
	assert.NoError(t, r.Route(env))
}

func TestShutdownClosesEverySessionAndClearsTracking(t *testing.T) {
	r := NewResponseRouter()
	a := &fakeSender{}
	b := &fakeSender{}
	r.RegisterSession("sess-a", a)
	r.RegisterSession("sess-b", b)
	r.Track("corr-1", "sess-a")

	r.Shutdown("agentplaned shutting down")

	assert.True(t, a.closed)
	assert.Equal(t, "agentplaned shutting down", a.closeReason)
	assert.True(t, b.closed)

	env := &models.Envelope{ID: "evt-1", CorrelationID: "corr-1"}
	require.NoError(t, r.Route(env))
	assert.Empty(t, a.sent)
}

func TestCloseSessionRemovesSessionAndItsCorrelations(t *testing.T) {
	r := NewResponseRouter()
	sender := &fakeSender{}
	r.RegisterSession("sess-1", sender)
	r.Track("corr-1", "sess-1")

	r.CloseSession("sess-1")

	env := &models.Envelope{ID: "evt-1", CorrelationID: "corr-1"}
	require.NoError(t, r.Route(env))
	assert.Empty(t, sender.sent)
}
