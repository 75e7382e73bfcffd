package config

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every problem found in one Validate pass.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

// Validate checks the decoded document for internal consistency: every
// agent has a unique ID, every binding and model reference resolves,
// model providers and the sandbox backend are from the supported sets,
// and gateway/sandbox/tool/memory settings are within range. It does not
// check that required sections are present, and it does not check auth
// settings.
func Validate(cfg *Config) error {
	var issues []string

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, "gateway.port must be between 0 and 65535")
	}

	seenAgents := map[string]bool{}
	for i, a := range cfg.Agents {
		if strings.TrimSpace(a.ID) == "" {
			issues = append(issues, fmt.Sprintf("agents[%d].id is required", i))
			continue
		}
		if seenAgents[a.ID] {
			issues = append(issues, fmt.Sprintf("agents[%d].id %q is duplicated", i, a.ID))
		}
		seenAgents[a.ID] = true
		if a.Model != "" {
			if _, ok := cfg.Models[a.Model]; !ok {
				issues = append(issues, fmt.Sprintf("agents[%d].model %q has no entry under models", i, a.Model))
			}
		}
		if a.MaxTurns < 0 {
			issues = append(issues, fmt.Sprintf("agents[%d].max_turns must be >= 0", i))
		}
	}

	for i, b := range cfg.Bindings {
		if strings.TrimSpace(b.AgentID) == "" {
			issues = append(issues, fmt.Sprintf("bindings[%d].agent_id is required", i))
			continue
		}
		if !seenAgents[b.AgentID] {
			issues = append(issues, fmt.Sprintf("bindings[%d].agent_id %q has no matching agents entry", i, b.AgentID))
		}
	}

	for name, m := range cfg.Models {
		switch strings.ToLower(m.Provider) {
		case "anthropic", "openai":
		default:
			issues = append(issues, fmt.Sprintf("models[%s].provider must be \"anthropic\" or \"openai\"", name))
		}
	}

	if cfg.Sandbox.Enabled {
		switch strings.ToLower(cfg.Sandbox.Backend) {
		case "none", "docker", "firecracker":
		default:
			issues = append(issues, "sandbox.backend must be \"none\", \"docker\", or \"firecracker\"")
		}
		if cfg.Sandbox.PoolSize < 0 {
			issues = append(issues, "sandbox.pool_size must be >= 0")
		}
	}

	if cfg.Tools.Execution.MaxToolCalls < 0 {
		issues = append(issues, "tools.execution.max_tool_calls must be >= 0")
	}
	if cfg.Tools.Execution.MaxAttempts < 0 {
		issues = append(issues, "tools.execution.max_attempts must be >= 0")
	}
	if cfg.Tools.Guard.MaxOutputChars < 0 {
		issues = append(issues, "tools.guard.max_output_chars must be >= 0")
	}

	if cfg.Memory != nil && cfg.Memory.Enabled {
		if cfg.Memory.Dimension <= 0 {
			issues = append(issues, "memory.dimension must be > 0 when memory is enabled")
		}
		w := cfg.Memory.Search.VectorWeight + cfg.Memory.Search.BM25Weight
		if w != 0 && (w < 0.99 || w > 1.01) {
			issues = append(issues, "memory.search.vector_weight + bm25_weight should sum to 1.0")
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
