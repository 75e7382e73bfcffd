package main

import (
	"testing"

	"github.com/agentplane/core/internal/config"
)

func TestBuildProviderResolvesRegisteredModel(t *testing.T) {
	cfg := &config.Config{
		Models: map[string]config.ModelConfig{
			"claude": {Provider: "anthropic", APIKey: "sk-test", Model: "claude-opus-4"},
		},
	}

	provider, err := buildProvider(cfg, "claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider == nil {
		t.Fatalf("expected a non-nil provider")
	}
}

func TestBuildProviderRejectsUnknownModelName(t *testing.T) {
	cfg := &config.Config{Models: map[string]config.ModelConfig{}}

	if _, err := buildProvider(cfg, "missing"); err == nil {
		t.Fatalf("expected an error for an unregistered model name")
	}
}

func TestBuildProviderRejectsUnsupportedProvider(t *testing.T) {
	cfg := &config.Config{
		Models: map[string]config.ModelConfig{
			"weird": {Provider: "cohere"},
		},
	}

	if _, err := buildProvider(cfg, "weird"); err == nil {
		t.Fatalf("expected an error for an unsupported provider")
	}
}

func TestFirstNonEmptyReturnsFirstSetValue(t *testing.T) {
	if got := firstNonEmpty("", "", "first", "second"); got != "first" {
		t.Fatalf("expected %q, got %q", "first", got)
	}
}

func TestFirstNonEmptyReturnsEmptyWhenAllEmpty(t *testing.T) {
	if got := firstNonEmpty("", ""); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
