package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulateMergesTextAndToolCallsByID(t *testing.T) {
	chunks := make(chan StreamChunk, 16)
	chunks <- StreamChunk{Type: ChunkTextDelta, TextDelta: "Hello, "}
	chunks <- StreamChunk{Type: ChunkTextDelta, TextDelta: "world"}
	chunks <- StreamChunk{Type: ChunkToolCallDelta, ToolCall: &ToolCallDelta{ID: "call_1", Name: "search"}}
	chunks <- StreamChunk{Type: ChunkToolCallDelta, ToolCall: &ToolCallDelta{ID: "call_1", Arguments: `{"q":`}}
	chunks <- StreamChunk{Type: ChunkToolCallDelta, ToolCall: &ToolCallDelta{ID: "call_1", Arguments: `"go"}`}}
	chunks <- StreamChunk{Type: ChunkUsage, Usage: &Usage{InputTokens: 10, OutputTokens: 5}}
	chunks <- StreamChunk{Type: ChunkDone, FinishReason: FinishToolUse}
	close(chunks)

	acc := Accumulate(chunks)

	assert.Equal(t, "Hello, world", acc.Text)
	require := assert.New(t)
	require.Len(acc.ToolCalls, 1)
	require.Equal("call_1", acc.ToolCalls[0].ID)
	require.Equal("search", acc.ToolCalls[0].Name)
	require.Equal(`{"q":"go"}`, acc.ToolCalls[0].Arguments)
	require.Equal(Usage{InputTokens: 10, OutputTokens: 5}, acc.Usage)
	require.Equal(FinishToolUse, acc.FinishReason)
	require.False(acc.IsTerminal())
}

func TestAccumulateNameOnlyOverwritesWhenEmpty(t *testing.T) {
	chunks := make(chan StreamChunk, 4)
	chunks <- StreamChunk{Type: ChunkToolCallDelta, ToolCall: &ToolCallDelta{ID: "c", Name: "first"}}
	chunks <- StreamChunk{Type: ChunkToolCallDelta, ToolCall: &ToolCallDelta{ID: "c", Name: "second"}}
	close(chunks)

	acc := Accumulate(chunks)

	require := assert.New(t)
	require.Len(acc.ToolCalls, 1)
	require.Equal("first", acc.ToolCalls[0].Name)
}

func TestIsTerminalWithoutToolCalls(t *testing.T) {
	acc := Accumulated{FinishReason: FinishStop}
	assert.True(t, acc.IsTerminal())

	acc = Accumulated{FinishReason: FinishToolUse}
	assert.False(t, acc.IsTerminal())
}
