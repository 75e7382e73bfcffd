// Package context holds an agent's ordered conversation log and the
// compactor that keeps it within an LLM's context window.
package context

import (
	"github.com/agentplane/core/pkg/models"
)

// Conversation is an ordered message log with a fixed system prompt
// invariant: Messages()[0] is always the system message once Reset or
// NewConversation has run.
type Conversation struct {
	system   models.Message
	messages []models.Message
}

// NewConversation seeds a conversation with its system prompt.
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{
		system: models.Message{Role: models.RoleSystem, Content: systemPrompt},
	}
}

// Append adds a message to the end of the log.
func (c *Conversation) Append(m models.Message) {
	c.messages = append(c.messages, m)
}

// Messages returns the system prompt followed by the conversation body.
func (c *Conversation) Messages() []models.Message {
	out := make([]models.Message, 0, len(c.messages)+1)
	out = append(out, c.system)
	out = append(out, c.messages...)
	return out
}

// Body returns the conversation without the system prompt, i.e. the
// portion a compactor or memory flush may rewrite.
func (c *Conversation) Body() []models.Message {
	return c.messages
}

// Replace swaps the non-system portion of the conversation wholesale.
// Used by the compactor to install summary + tail.
func (c *Conversation) Replace(body []models.Message) {
	c.messages = body
}

// SystemPrompt returns the fixed system message.
func (c *Conversation) SystemPrompt() models.Message {
	return c.system
}

// CharLen approximates a char-budget proxy for token counting.
func CharLen(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
		for _, tc := range m.ToolCalls {
			total += len(tc.Arguments) + len(tc.Name)
		}
	}
	return total
}
