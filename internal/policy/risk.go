package policy

import (
	"regexp"
	"strings"

	"github.com/agentplane/core/pkg/models"
)

var (
	criticalBases = map[string]bool{
		"dd":    true,
		"mkfs":  true,
		"mkfs.ext4": true,
		"mkfs.xfs":  true,
	}
	redBases = map[string]bool{
		"rm":     true,
		"curl":   true,
		"wget":   true,
		"sudo":   true,
		"docker": true,
		"chmod":  true,
		"chown":  true,
		"kill":   true,
	}
	yellowBases = map[string]bool{
		"git": true,
		"npm": true,
		"find": true,
	}
	greenBases = map[string]bool{
		"ls":   true,
		"echo": true,
		"cat":  true,
		"pwd":  true,
	}

	forkBombRe     = regexp.MustCompile(`:\s*\(\s*\)\s*\{.*:\s*\|\s*:.*\}\s*;\s*:`)
	rmRootRe       = regexp.MustCompile(`\brm\s+(-\w*r\w*f\w*|-\w*f\w*r\w*)\s+/\s*$`)
	ddIfRe         = regexp.MustCompile(`\bdd\s+if=`)
	envAssignRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=\S*$`)
	injectionStart = regexp.MustCompile(`^(LD_PRELOAD|LD_LIBRARY_PATH|PATH)=`)
)

// SegmentClassification is the classification of one command segment.
type SegmentClassification struct {
	Segment string
	Base    string
	Level   models.RiskLevel
	Blocked bool
	Reason  string
}

// Classification is the overall classification of a (possibly compound)
// shell command: the maximum risk level across its segments.
type Classification struct {
	Level    models.RiskLevel
	Blocked  bool
	Reason   string
	Segments []SegmentClassification
}

// ClassifyShellCommand splits cmd on &&, ||, ;, | into segments, strips
// leading env assignments and path prefixes from each, classifies the
// resulting base command, and returns the maximum severity across
// segments.
func ClassifyShellCommand(cmd string) Classification {
	segments := splitSegments(cmd)
	result := Classification{Level: models.RiskGreen, Segments: make([]SegmentClassification, 0, len(segments))}

	if forkBombRe.MatchString(cmd) {
		result.Level = models.RiskCritical
		result.Blocked = true
		result.Reason = "fork bomb pattern"
	}

	for _, seg := range segments {
		sc := classifySegment(seg)
		result.Segments = append(result.Segments, sc)
		result.Level = result.Level.Max(sc.Level)
		if sc.Blocked && !result.Blocked {
			result.Blocked = true
			result.Reason = sc.Reason
		}
	}
	return result
}

func splitSegments(cmd string) []string {
	replacer := strings.NewReplacer("&&", "\x00", "||", "\x00", ";", "\x00", "|", "\x00")
	raw := strings.Split(replacer.Replace(cmd), "\x00")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func classifySegment(segment string) SegmentClassification {
	sc := SegmentClassification{Segment: segment, Level: models.RiskYellow}

	if strings.Contains(segment, "$(") || strings.Contains(segment, "`") {
		sc.Level = models.RiskCritical
		sc.Blocked = true
		sc.Reason = "command substitution is not permitted"
		return sc
	}

	tokens := strings.Fields(segment)
	idx := 0
	for idx < len(tokens) && envAssignRe.MatchString(tokens[idx]) {
		if injectionStart.MatchString(tokens[idx]) {
			sc.Level = models.RiskCritical
			sc.Blocked = true
			sc.Reason = "environment injection via " + tokens[idx]
			return sc
		}
		idx++
	}
	if idx >= len(tokens) {
		sc.Base = ""
		sc.Level = models.RiskGreen
		return sc
	}

	base := tokens[idx]
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	sc.Base = base

	if ddIfRe.MatchString(segment) || rmRootRe.MatchString(segment) || criticalBases[base] {
		sc.Level = models.RiskCritical
		sc.Blocked = true
		sc.Reason = "destructive command: " + base
		return sc
	}

	rest := tokens[idx+1:]
	if base == "find" || base == "git" {
		for _, arg := range rest {
			flag, _, _ := strings.Cut(arg, "=")
			switch flag {
			case "-exec", "--exec", "--upload-pack", "--post-checkout":
				sc.Level = models.RiskCritical
				sc.Blocked = true
				sc.Reason = base + " " + arg + " is not permitted"
				return sc
			}
		}
	}

	switch {
	case redBases[base]:
		sc.Level = models.RiskRed
	case yellowBases[base]:
		sc.Level = models.RiskYellow
	case greenBases[base]:
		sc.Level = models.RiskGreen
	default:
		sc.Level = models.RiskYellow
	}
	return sc
}

// RequiresYoloMode reports whether level requires yoloMode=true to run.
func RequiresYoloMode(level models.RiskLevel) bool {
	return level == models.RiskRed
}

// ShellAllowed applies the policy table: critical is always blocked; red
// requires yoloMode; yellow and green are permitted (yellow is logged by
// the caller).
func ShellAllowed(c Classification, yoloMode bool) (bool, string) {
	if c.Blocked {
		return false, c.Reason
	}
	if c.Level == models.RiskRed && !yoloMode {
		return false, "red-risk command requires yoloMode"
	}
	return true, ""
}
