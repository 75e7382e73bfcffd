package tools

import (
	"fmt"
	"strings"

	"github.com/agentplane/core/pkg/models"
)

// ResultGuard truncates and redacts oversized or sensitive tool output
// before it re-enters the conversation.
type ResultGuard struct {
	MaxOutputChars int
	RedactPatterns []string
}

// Active reports whether the guard has any configured limits.
func (g ResultGuard) Active() bool {
	return g.MaxOutputChars > 0 || len(g.RedactPatterns) > 0
}

// Apply truncates result.Output (after stringifying) to MaxOutputChars
// and replaces any configured substring with "[redacted]".
func (g ResultGuard) Apply(toolName string, result models.ToolResult) models.ToolResult {
	text := stringifyOutput(result)
	for _, pat := range g.RedactPatterns {
		if pat == "" {
			continue
		}
		text = strings.ReplaceAll(text, pat, "[redacted]")
	}
	if g.MaxOutputChars > 0 && len(text) > g.MaxOutputChars {
		text = text[:g.MaxOutputChars] + fmt.Sprintf("... [truncated %d chars]", len(text)-g.MaxOutputChars)
	}
	if result.Success {
		result.Output = text
	} else {
		result.Error = text
	}
	return result
}

func stringifyOutput(result models.ToolResult) string {
	if !result.Success {
		return result.Error
	}
	switch v := result.Output.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
