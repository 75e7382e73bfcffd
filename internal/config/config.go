// Package config loads and validates the single structured document that
// drives a bootstrap: gateway transport, agent roster, routing bindings,
// model providers, auth, session persistence, tool policy, sandbox, and
// plugins, with optional memory/skills/channels sections.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentplane/core/internal/policy"
)

// Config is the top-level document. Fields tagged with a yaml name map
// 1:1 onto the required/optional top-level sections; any key in the
// source document that isn't one of these is rejected at load time.
type Config struct {
	Gateway  GatewayConfig            `yaml:"gateway"`
	Agents   []AgentConfig            `yaml:"agents"`
	Bindings []BindingConfig          `yaml:"bindings"`
	Models   map[string]ModelConfig   `yaml:"models"`
	Auth     AuthConfig               `yaml:"auth"`
	Session  SessionConfig            `yaml:"session"`
	Tools    ToolsConfig              `yaml:"tools"`
	Sandbox  SandboxConfig            `yaml:"sandbox"`
	Plugins  PluginsConfig            `yaml:"plugins"`

	Memory   *MemoryConfig            `yaml:"memory,omitempty"`
	Skills   *SkillsConfig            `yaml:"skills,omitempty"`
	Channels *ChannelsConfig          `yaml:"channels,omitempty"`
}

// GatewayConfig configures the WebSocket listener.
type GatewayConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	AllowAnonymous bool   `yaml:"allow_anonymous"`
}

// AgentConfig declares one agent's identity, model binding, and policy.
type AgentConfig struct {
	ID           string        `yaml:"id"`
	Priority     int           `yaml:"priority"`
	Model        string        `yaml:"model"`
	SystemPrompt string        `yaml:"system_prompt"`
	MaxTurns     int           `yaml:"max_turns"`
	Policy       *PolicyConfig `yaml:"policy,omitempty"`
}

// PolicyConfig is one layer's allow/deny tool list, as consumed by
// internal/policy.Resolver.
type PolicyConfig struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// AsPolicy converts a *PolicyConfig to the *policy.Policy the resolver
// expects, preserving the nil-vs-empty-slice distinction (nil means "this
// layer does not configure the list").
func (p *PolicyConfig) AsPolicy() *policy.Policy {
	if p == nil {
		return nil
	}
	return &policy.Policy{Allow: p.Allow, Deny: p.Deny}
}

// BindingConfig routes (peer, channel, team, account) filters to an agent.
type BindingConfig struct {
	AgentID  string        `yaml:"agent_id"`
	Priority int           `yaml:"priority"`
	Peer     string        `yaml:"peer"`
	Channel  string        `yaml:"channel"`
	Team     string        `yaml:"team"`
	Account  string        `yaml:"account"`
	Policy   *PolicyConfig `yaml:"policy,omitempty"`
}

// ModelConfig names one named model entry referenced by AgentConfig.Model.
type ModelConfig struct {
	Provider string `yaml:"provider"` // "anthropic" | "openai"
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// AuthConfig configures gateway authentication.
type AuthConfig struct {
	APIKeys        []string `yaml:"api_keys"`
	AllowAnonymous bool     `yaml:"allow_anonymous"`
}

// SessionConfig configures session persistence.
type SessionConfig struct {
	Directory string `yaml:"directory"`
}

// ToolsConfig configures tool execution, result guarding, and approval.
type ToolsConfig struct {
	Execution ToolExecutionConfig `yaml:"execution"`
	Guard     ResultGuardConfig   `yaml:"guard"`
	Approval  ApprovalConfig      `yaml:"approval"`
	Global    *PolicyConfig       `yaml:"policy,omitempty"`
}

// ToolExecutionConfig bounds tool dispatch.
type ToolExecutionConfig struct {
	MaxToolCalls int           `yaml:"max_tool_calls"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// ResultGuardConfig configures internal/tools.ResultGuard.
type ResultGuardConfig struct {
	MaxOutputChars int      `yaml:"max_output_chars"`
	RedactPatterns []string `yaml:"redact_patterns"`
}

// ApprovalConfig controls the risk-gated execution path: yoloMode plays
// the role of an auto-approve trust level for tool calls that would
// otherwise require a human in the loop.
type ApprovalConfig struct {
	YoloMode bool `yaml:"yolo_mode"`
}

// SandboxConfig configures isolated code/command execution.
type SandboxConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Backend  string        `yaml:"backend"`
	Timeout  time.Duration `yaml:"timeout"`
	PoolSize int           `yaml:"pool_size"`
}

// PluginsConfig lists filesystem paths to load plugins from.
type PluginsConfig struct {
	Paths []string `yaml:"paths"`
}

// MemoryConfig configures the episodic memory store.
type MemoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Dimension int    `yaml:"dimension"`

	Embeddings struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
		Model    string `yaml:"model"`
	} `yaml:"embeddings"`

	Search struct {
		VectorWeight float64 `yaml:"vector_weight"`
		BM25Weight   float64 `yaml:"bm25_weight"`
		HalfLifeDays float64 `yaml:"half_life_days"`
		MMRLambda    float64 `yaml:"mmr_lambda"`
	} `yaml:"search"`
}

// SkillsConfig lists markdown-defined skill bundles to load.
type SkillsConfig struct {
	Directories []string `yaml:"directories"`
}

// ChannelsConfig is a passthrough bag for channel-adapter settings, keyed
// by channel name (e.g. "slack", "discord"). The adapters themselves are
// out of scope here, but their config still needs a home in the document
// so unknown-key rejection doesn't reject them.
type ChannelsConfig map[string]map[string]any

// Load reads path, expands `$VAR`/`${VAR}` references, decodes the
// single YAML document with unknown-field rejection, applies the
// AGENTIC_OS_ environment overlay, fills defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected a single document")
	}

	ApplyEnvOverlay(&cfg, os.Environ())
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "0.0.0.0"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8080
	}
	if cfg.Session.Directory == "" {
		cfg.Session.Directory = "sessions"
	}
	if cfg.Tools.Execution.MaxToolCalls == 0 {
		cfg.Tools.Execution.MaxToolCalls = 25
	}
	if cfg.Tools.Execution.Timeout == 0 {
		cfg.Tools.Execution.Timeout = 30 * time.Second
	}
	if cfg.Tools.Execution.MaxAttempts == 0 {
		cfg.Tools.Execution.MaxAttempts = 1
	}
	if cfg.Sandbox.Backend == "" {
		cfg.Sandbox.Backend = "none"
	}
	if cfg.Sandbox.Timeout == 0 {
		cfg.Sandbox.Timeout = 30 * time.Second
	}
	for i := range cfg.Agents {
		if cfg.Agents[i].MaxTurns == 0 {
			cfg.Agents[i].MaxTurns = 100
		}
	}
	if cfg.Memory != nil {
		if cfg.Memory.Dimension == 0 {
			cfg.Memory.Dimension = 1536
		}
		if cfg.Memory.Path == "" {
			cfg.Memory.Path = "memory.db"
		}
		if cfg.Memory.Embeddings.Model == "" {
			cfg.Memory.Embeddings.Model = "text-embedding-3-small"
		}
		if cfg.Memory.Search.HalfLifeDays == 0 {
			cfg.Memory.Search.HalfLifeDays = 30
		}
		if cfg.Memory.Search.MMRLambda == 0 {
			cfg.Memory.Search.MMRLambda = 0.5
		}
		if cfg.Memory.Search.VectorWeight == 0 && cfg.Memory.Search.BM25Weight == 0 {
			cfg.Memory.Search.VectorWeight = 0.7
			cfg.Memory.Search.BM25Weight = 0.3
		}
	}
}
