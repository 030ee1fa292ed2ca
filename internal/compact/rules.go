package compact

import (
	"os"
	"strings"
)

const workspaceRulesFile = "AGENTS.md"

var workspaceRuleSections = []string{"Session Startup", "Red Lines"}

// buildWorkspaceRulesSection reads AGENTS.md from the current working
// directory and carries its critical sections into the summary. Any read
// error yields an empty section.
func buildWorkspaceRulesSection() string {
	data, err := os.ReadFile(workspaceRulesFile)
	if err != nil {
		return ""
	}

	parts := make([]string, 0, len(workspaceRuleSections))
	for _, name := range workspaceRuleSections {
		if section := extractMarkdownSection(string(data), name); section != "" {
			parts = append(parts, section)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	rules := strings.Join(parts, "\n\n")
	if len(rules) > maxSummaryCtxChars {
		rules = rules[:maxSummaryCtxChars] + "\n...[truncated]..."
	}
	return "\n\n<workspace-critical-rules>\n" + rules + "\n</workspace-critical-rules>"
}

// extractMarkdownSection returns the named heading and its body, up to the
// next heading of the same or higher level.
func extractMarkdownSection(doc, name string) string {
	lines := strings.Split(doc, "\n")
	var (
		collected []string
		level     int
		inside    bool
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			hashes := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			title := strings.TrimSpace(trimmed[hashes:])
			if inside && hashes <= level {
				break
			}
			if !inside && strings.EqualFold(title, name) {
				inside = true
				level = hashes
				collected = append(collected, line)
				continue
			}
		}
		if inside {
			collected = append(collected, line)
		}
	}
	if !inside {
		return ""
	}
	return strings.TrimSpace(strings.Join(collected, "\n"))
}
