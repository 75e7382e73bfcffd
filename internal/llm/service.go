// Package llm abstracts LLM providers behind a single streaming
// interface and unifies their deltas into an accumulated response.
package llm

import (
	"context"

	"github.com/agentplane/core/pkg/models"
)

// ChunkType discriminates a streamed chunk.
type ChunkType string

const (
	ChunkTextDelta     ChunkType = "text_delta"
	ChunkToolCallDelta ChunkType = "tool_call_delta"
	ChunkUsage         ChunkType = "usage"
	ChunkDone          ChunkType = "done"
)

// FinishReason mirrors the provider-reported stop condition.
type FinishReason string

const (
	FinishStop     FinishReason = "stop"
	FinishEndTurn  FinishReason = "end_turn"
	FinishLength   FinishReason = "length"
	FinishToolUse  FinishReason = "tool_use"
)

// ToolCallDelta is an incremental tool-call fragment. Deltas sharing the
// same ID are accumulated: Arguments appends, Name overwrites only when
// previously empty.
type ToolCallDelta struct {
	ID        string
	Name      string
	Arguments string
}

// Usage carries token accounting for a turn.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// StreamChunk is one unit of a provider's streamed response.
type StreamChunk struct {
	Type         ChunkType
	TextDelta    string
	ToolCall     *ToolCallDelta
	Usage        *Usage
	FinishReason FinishReason
}

// Provider streams a completion for the given messages and tool
// definitions. The channel is closed when the stream ends; ctx
// cancellation must stop production promptly.
type Provider interface {
	Stream(ctx context.Context, messages []models.Message, tools []models.ToolDefinition) (<-chan StreamChunk, error)
}

// Accumulated is the turn's fully-assembled assistant output.
type Accumulated struct {
	Text         string
	ToolCalls    []models.ToolCall
	Usage        Usage
	FinishReason FinishReason
}

// Accumulate drains chunks and folds them into an Accumulated response,
// merging tool-call deltas by ID in arrival order.
func Accumulate(chunks <-chan StreamChunk) Accumulated {
	var acc Accumulated
	order := []string{}
	byID := map[string]*models.ToolCall{}

	for chunk := range chunks {
		switch chunk.Type {
		case ChunkTextDelta:
			acc.Text += chunk.TextDelta
		case ChunkToolCallDelta:
			if chunk.ToolCall == nil {
				continue
			}
			tc, ok := byID[chunk.ToolCall.ID]
			if !ok {
				tc = &models.ToolCall{ID: chunk.ToolCall.ID}
				byID[chunk.ToolCall.ID] = tc
				order = append(order, chunk.ToolCall.ID)
			}
			if tc.Name == "" && chunk.ToolCall.Name != "" {
				tc.Name = chunk.ToolCall.Name
			}
			tc.Arguments += chunk.ToolCall.Arguments
		case ChunkUsage:
			if chunk.Usage != nil {
				acc.Usage = *chunk.Usage
			}
		case ChunkDone:
			if chunk.FinishReason != "" {
				acc.FinishReason = chunk.FinishReason
			}
		}
	}

	acc.ToolCalls = make([]models.ToolCall, 0, len(order))
	for _, id := range order {
		acc.ToolCalls = append(acc.ToolCalls, *byID[id])
	}
	return acc
}

// IsTerminal reports whether finishReason with no pending tool calls
// should end the agent loop's turn-by-turn protocol.
func (a Accumulated) IsTerminal() bool {
	if len(a.ToolCalls) > 0 {
		return false
	}
	switch a.FinishReason {
	case FinishStop, FinishEndTurn, FinishLength:
		return true
	default:
		return false
	}
}
