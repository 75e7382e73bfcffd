package memory

import (
	"fmt"
	"strings"

	"github.com/agentplane/core/pkg/models"
)

// ChunkConfig bounds how conversation history is chunked before
// importance scoring and upsert.
type ChunkConfig struct {
	TargetTokens   int
	OverlapTokens  int
	MaxChunkTokens int
}

// DefaultChunkConfig mirrors the defaults used throughout the agent
// loop's char-per-token proxy (4 chars/token).
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{TargetTokens: 400, OverlapTokens: 50, MaxChunkTokens: 800}
}

const charsPerToken = 4

func tokensToChars(tokens int) int { return tokens * charsPerToken }

// renderHistory concatenates role: content pairs, one per line.
func renderHistory(messages []models.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, m.Content)
	}
	return b.String()
}

// chunkText splits text into overlapping windows sized by character
// proxy for targetTokens, capped at maxChunkTokens, each window
// overlapping the previous by overlapTokens.
func chunkText(text string, cfg ChunkConfig) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	target := cfg.TargetTokens
	if target <= 0 {
		target = DefaultChunkConfig().TargetTokens
	}
	maxTok := cfg.MaxChunkTokens
	if maxTok <= 0 || maxTok < target {
		maxTok = target
	}
	overlap := cfg.OverlapTokens
	if overlap < 0 {
		overlap = 0
	}

	windowChars := tokensToChars(target)
	maxChars := tokensToChars(maxTok)
	overlapChars := tokensToChars(overlap)
	if overlapChars >= windowChars {
		overlapChars = windowChars / 2
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + windowChars
		if end > len(runes) {
			end = len(runes)
		}
		if end-start > maxChars {
			end = start + maxChars
		}
		chunks = append(chunks, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

var importanceKeywords = []string{
	"decided", "decision", "will use", "must", "should",
	"agreed", "action item", "todo", "next step", "important",
	"remember", "always", "never",
}

// scoreImportance heuristically scores a chunk of text in [0,1]: a
// length floor, plus boosts for decision/action language and code
// fences.
func scoreImportance(text string) float64 {
	score := 0.3 // length-floor baseline
	lower := strings.ToLower(text)

	for _, kw := range importanceKeywords {
		if strings.Contains(lower, kw) {
			score += 0.1
		}
	}
	if strings.Contains(text, "```") {
		score += 0.2
	}
	if len(text) > 200 {
		score += 0.1
	}
	return models.ClampImportance(score)
}
