package compact

import "strings"

// splitPreservedRecentTurns removes the newest recentTurns pairs of
// user/assistant messages from the summarizable set so they can be carried
// verbatim. Both return slices keep original chronological order.
func splitPreservedRecentTurns(msgs []Message, recentTurns int) (summarizable, preserved []Message) {
	if recentTurns <= 0 {
		return msgs, nil
	}

	want := 2 * recentTurns
	keep := make(map[int]struct{}, want)
	for i := len(msgs) - 1; i >= 0 && len(keep) < want; i-- {
		if msgs[i].Role == RoleUser || msgs[i].Role == RoleAssistant {
			keep[i] = struct{}{}
		}
	}
	if len(keep) == 0 {
		return msgs, nil
	}

	summarizable = make([]Message, 0, len(msgs)-len(keep))
	preserved = make([]Message, 0, len(keep))
	for i, m := range msgs {
		if _, ok := keep[i]; ok {
			if m.Role == RoleUser || m.Role == RoleAssistant {
				preserved = append(preserved, m)
			}
			continue
		}
		summarizable = append(summarizable, m)
	}
	return summarizable, preserved
}

// buildPreservedTailSection renders the verbatim tail. Messages with no
// extractable text are skipped; "" when nothing remains.
func buildPreservedTailSection(preserved []Message) string {
	if len(preserved) == 0 {
		return ""
	}
	lines := make([]string, 0, len(preserved))
	for _, m := range preserved {
		text := strings.TrimSpace(m.ExtractText())
		if text == "" {
			continue
		}
		label := "- User:"
		if m.Role == RoleAssistant {
			label = "- Assistant:"
		}
		lines = append(lines, label+" "+truncateWithEllipsis(text, maxRecentTurnChars))
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n\n## Recent turns preserved verbatim\n" + strings.Join(lines, "\n")
}
