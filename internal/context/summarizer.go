package context

import (
	"context"
	"fmt"

	"github.com/agentplane/core/internal/llm"
	"github.com/agentplane/core/pkg/models"
)

// summarizePrompt instructs the model to compress a message history into
// a short prose recap, preserving facts and decisions a later turn might
// need.
const summarizePrompt = "Summarize the conversation so far in a few dense paragraphs. " +
	"Preserve concrete facts, decisions, and open threads; drop pleasantries."

// LLMSummarizer implements Summarizer over an llm.Provider: it streams a
// single non-tool completion asking the model to compress history and
// returns the accumulated text.
type LLMSummarizer struct {
	Provider llm.Provider
}

// NewLLMSummarizer builds a Summarizer backed by provider.
func NewLLMSummarizer(provider llm.Provider) *LLMSummarizer {
	return &LLMSummarizer{Provider: provider}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, history []models.Message) (string, error) {
	messages := append([]models.Message{{Role: models.RoleSystem, Content: summarizePrompt}}, history...)
	chunks, err := s.Provider.Stream(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("summarize stream: %w", err)
	}
	acc := llm.Accumulate(chunks)
	return acc.Text, nil
}
