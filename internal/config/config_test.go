package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
gateway:
  port: 9001
agents:
  - id: main
    model: claude
models:
  claude:
    provider: anthropic
    api_key: sk-test
bindings:
  - agent_id: main
    peer: "*"
auth: {}
session:
  directory: /tmp/sessions
tools: {}
sandbox: {}
plugins: {}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesRequiredSections(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Gateway.Port)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "main", cfg.Agents[0].ID)
	assert.Equal(t, 100, cfg.Agents[0].MaxTurns) // default applied
	assert.Equal(t, "anthropic", cfg.Models["claude"].Provider)
}

func TestLoadRejectsUnknownTopLevelKey(t *testing.T) {
	path := writeConfig(t, minimalYAML+"\nbogus_section:\n  x: 1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, minimalYAML+"\n---\ngateway:\n  port: 1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCatchesDanglingBindingAgentID(t *testing.T) {
	cfg := &Config{
		Agents:   []AgentConfig{{ID: "main"}},
		Bindings: []BindingConfig{{AgentID: "ghost"}},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestValidateCatchesModelProviderMismatch(t *testing.T) {
	cfg := &Config{
		Agents: []AgentConfig{{ID: "main", Model: "claude"}},
		Models: map[string]ModelConfig{"claude": {Provider: "not-a-real-provider"}},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "models[claude].provider")
}

func TestValidateCatchesMissingModelEntry(t *testing.T) {
	cfg := &Config{
		Agents: []AgentConfig{{ID: "main", Model: "claude"}},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agents[0].model")
}

func TestPolicyConfigAsPolicyPreservesNilVsEmpty(t *testing.T) {
	var nilPolicy *PolicyConfig
	assert.Nil(t, nilPolicy.AsPolicy())

	p := &PolicyConfig{Allow: []string{}, Deny: []string{"bash"}}
	converted := p.AsPolicy()
	require.NotNil(t, converted)
	assert.Equal(t, []string{"bash"}, converted.Deny)
	assert.NotNil(t, converted.Allow)
}
