package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentplane/core/internal/agent"
	"github.com/agentplane/core/pkg/models"
)

func TestRegistryGetStatusReportsLocalLifecycle(t *testing.T) {
	manager := agent.NewManager()
	registerEchoAgent(t, manager, "local-1", "hi")
	registry := NewRegistry(manager, nil)

	status, err := registry.GetStatus("local-1")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusReady, status)
}

func TestRegistryGetStatusAssumesRemoteReady(t *testing.T) {
	manager := agent.NewManager()
	registry := NewRegistry(manager, nil)

	status, err := registry.GetStatus("elsewhere")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusReady, status)
}
