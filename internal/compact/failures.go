package compact

import (
	"fmt"
	"strings"
)

type toolFailure struct {
	toolName string
	meta     string
	summary  string
}

// collectToolFailures extracts failed tool results from the transcript,
// deduplicated by tool-call id. Only tool results flagged as errors and
// carrying a call id contribute.
func collectToolFailures(msgs []Message) []toolFailure {
	seen := make(map[string]struct{})
	failures := make([]toolFailure, 0, 4)
	for _, m := range msgs {
		if m.Role != RoleToolResult || !m.IsError || m.ToolCallID == "" {
			continue
		}
		if _, ok := seen[m.ToolCallID]; ok {
			continue
		}
		seen[m.ToolCallID] = struct{}{}

		name := m.ToolName
		if name == "" {
			name = "tool"
		}

		meta := ""
		if m.Details != nil {
			parts := make([]string, 0, 2)
			if m.Details.Status != "" {
				parts = append(parts, "status="+m.Details.Status)
			}
			if m.Details.ExitCode != nil {
				parts = append(parts, fmt.Sprintf("exitCode=%d", *m.Details.ExitCode))
			}
			meta = strings.Join(parts, " ")
		}

		summary := collapseWhitespace(m.ExtractText())
		if summary == "" {
			if meta == "" {
				summary = "failed (no output)"
			} else {
				summary = "failed"
			}
		} else {
			summary = truncateWithEllipsis(summary, maxToolFailureChars)
		}

		failures = append(failures, toolFailure{toolName: name, meta: meta, summary: summary})
	}
	return failures
}

// buildToolFailureSection renders the failure digest, capped at
// maxToolFailures entries. Returns "" when nothing failed.
func buildToolFailureSection(msgs []Message) string {
	failures := collectToolFailures(msgs)
	if len(failures) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n\n## Tool Failures\n")
	shown := failures
	if len(shown) > maxToolFailures {
		shown = shown[:maxToolFailures]
	}
	for _, f := range shown {
		sb.WriteString("- ")
		sb.WriteString(f.toolName)
		if f.meta != "" {
			sb.WriteString(" (")
			sb.WriteString(f.meta)
			sb.WriteString(")")
		}
		sb.WriteString(": ")
		sb.WriteString(f.summary)
		sb.WriteString("\n")
	}
	if extra := len(failures) - maxToolFailures; extra > 0 {
		sb.WriteString(fmt.Sprintf("- ...and %d more\n", extra))
	}
	return strings.TrimRight(sb.String(), "\n")
}
