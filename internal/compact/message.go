package compact

import "strings"

// Message roles that appear in a session transcript.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolResult = "toolResult"
)

// ContentBlock is one typed block of message content. Blocks whose type is
// not "text" are carried through untouched but contribute nothing to text
// extraction.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolDetails carries free-form metadata attached to a tool result.
type ToolDetails struct {
	Status   string `json:"status,omitempty"`
	ExitCode *int   `json:"exitCode,omitempty"`
}

// Message is one immutable transcript entry. Content is either a plain
// string (Text) or a sequence of typed blocks (Blocks); when both are set,
// Blocks wins.
type Message struct {
	Role       string         `json:"role"`
	Text       string         `json:"text,omitempty"`
	Blocks     []ContentBlock `json:"blocks,omitempty"`
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	IsError    bool           `json:"isError,omitempty"`
	Details    *ToolDetails   `json:"details,omitempty"`
}

// ExtractText returns the message's readable text: the concatenated text
// blocks when block content is present, otherwise the plain string content.
// Unknown block shapes are skipped rather than failing.
func (m Message) ExtractText() string {
	if len(m.Blocks) == 0 {
		return m.Text
	}
	var sb strings.Builder
	for _, b := range m.Blocks {
		if b.Type != "text" || b.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(b.Text)
	}
	return sb.String()
}

// TextMessage builds a plain-text message with the given role.
func TextMessage(role, text string) Message {
	return Message{Role: role, Text: text}
}

func messagesText(msgs []Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		text := strings.TrimSpace(m.ExtractText())
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}
	return sb.String()
}

// lastUserText returns the text of the most recent user message, or "".
func lastUserText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != RoleUser {
			continue
		}
		if text := strings.TrimSpace(msgs[i].ExtractText()); text != "" {
			return text
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateWithEllipsis(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
