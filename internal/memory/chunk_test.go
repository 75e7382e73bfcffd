package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentplane/core/pkg/models"
)

func TestRenderHistoryJoinsRoleContentPairs(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi there"},
	}
	text := renderHistory(messages)
	assert.Equal(t, "user: hello\nassistant: hi there", text)
}

func TestChunkTextRespectsTargetAndOverlap(t *testing.T) {
	text := strings.Repeat("word ", 500)
	cfg := ChunkConfig{TargetTokens: 20, OverlapTokens: 5, MaxChunkTokens: 20}
	chunks := chunkText(text, cfg)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), tokensToChars(cfg.MaxChunkTokens))
	}
}

func TestChunkTextEmptyInputReturnsNoChunks(t *testing.T) {
	assert.Empty(t, chunkText("   ", DefaultChunkConfig()))
}

func TestScoreImportanceBoostsDecisionLanguageAndCodeFences(t *testing.T) {
	plain := scoreImportance("the weather is nice today")
	decision := scoreImportance("we decided to always use this approach, it is important")
	withCode := scoreImportance("```go\nfunc main() {}\n```")

	assert.Less(t, plain, decision)
	assert.Less(t, plain, withCode)
}

func TestScoreImportanceClampedToUnitInterval(t *testing.T) {
	loud := scoreImportance("decided decision important remember always never action item todo next step agreed must should ```code```" + strings.Repeat("x", 300))
	assert.LessOrEqual(t, loud, 1.0)
	assert.GreaterOrEqual(t, loud, 0.0)
}
