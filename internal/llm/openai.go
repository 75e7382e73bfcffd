package llm

import (
	"context"
	"encoding/json"

	"github.com/agentplane/core/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider streams completions from an OpenAI-compatible chat API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider builds a provider bound to model, authenticating
// with apiKey.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (p *OpenAIProvider) Stream(ctx context.Context, messages []models.Message, tools []models.ToolDefinition) (<-chan StreamChunk, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
		Stream:   true,
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk, 16)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]

			if choice.Delta.Content != "" {
				select {
				case out <- StreamChunk{Type: ChunkTextDelta, TextDelta: choice.Delta.Content}:
				case <-ctx.Done():
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				id := tc.ID
				if id == "" {
					id = toolCallIndexID(tc.Index)
				}
				delta := &ToolCallDelta{ID: id, Arguments: tc.Function.Arguments}
				if tc.Function.Name != "" {
					delta.Name = tc.Function.Name
				}
				select {
				case out <- StreamChunk{Type: ChunkToolCallDelta, ToolCall: delta}:
				case <-ctx.Done():
					return
				}
			}

			if resp.Usage != nil {
				select {
				case out <- StreamChunk{Type: ChunkUsage, Usage: &Usage{
					InputTokens:  resp.Usage.PromptTokens,
					OutputTokens: resp.Usage.CompletionTokens,
				}}:
				case <-ctx.Done():
					return
				}
			}

			if choice.FinishReason != "" {
				select {
				case out <- StreamChunk{Type: ChunkDone, FinishReason: mapOpenAIFinishReason(choice.FinishReason)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func toolCallIndexID(index *int) string {
	if index == nil {
		return "0"
	}
	b, _ := json.Marshal(*index)
	return string(b)
}

func mapOpenAIFinishReason(reason openai.FinishReason) FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return FinishStop
	case openai.FinishReasonLength:
		return FinishLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return FinishToolUse
	default:
		return FinishStop
	}
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []models.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

var _ Provider = (*OpenAIProvider)(nil)
