package llm

import (
	"context"

	"github.com/agentplane/core/pkg/models"
	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider streams completions from the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider builds a provider bound to model, authenticating
// with apiKey.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *AnthropicProvider) Stream(ctx context.Context, messages []models.Message, tools []models.ToolDefinition) (<-chan StreamChunk, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 4096,
		Messages:  toAnthropicMessages(messages),
		Tools:     toAnthropicTools(tools),
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	out := make(chan StreamChunk, 16)

	go func() {
		defer close(out)
		var currentToolCallID string

		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if tu, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					currentToolCallID = tu.ID
					select {
					case out <- StreamChunk{Type: ChunkToolCallDelta, ToolCall: &ToolCallDelta{ID: tu.ID, Name: tu.Name}}:
					case <-ctx.Done():
						return
					}
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					select {
					case out <- StreamChunk{Type: ChunkTextDelta, TextDelta: delta.Text}:
					case <-ctx.Done():
						return
					}
				case anthropic.InputJSONDelta:
					select {
					case out <- StreamChunk{Type: ChunkToolCallDelta, ToolCall: &ToolCallDelta{ID: currentToolCallID, Arguments: delta.PartialJSON}}:
					case <-ctx.Done():
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				reason := mapAnthropicStopReason(string(variant.Delta.StopReason))
				select {
				case out <- StreamChunk{
					Type: ChunkUsage,
					Usage: &Usage{
						OutputTokens: int(variant.Usage.OutputTokens),
					},
				}:
				case <-ctx.Done():
					return
				}
				select {
				case out <- StreamChunk{Type: ChunkDone, FinishReason: reason}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, stream.Err()
}

func mapAnthropicStopReason(reason string) FinishReason {
	switch reason {
	case "end_turn":
		return FinishEndTurn
	case "max_tokens":
		return FinishLength
	case "tool_use":
		return FinishToolUse
	default:
		return FinishStop
	}
}

func toAnthropicMessages(messages []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleUser, models.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

func toAnthropicTools(tools []models.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: t.InputSchema,
				},
			},
		})
	}
	return out
}

var _ Provider = (*AnthropicProvider)(nil)
