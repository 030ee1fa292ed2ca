package compact

import (
	"context"
	"fmt"
	"strings"
)

// CompleteRequest is one completion call against the model client.
type CompleteRequest struct {
	Model         string
	APIKey        string
	Prompt        string
	ReserveTokens int
}

// Completer is the model client used for summarization. Implementations
// must honor ctx cancellation.
type Completer interface {
	Complete(ctx context.Context, req CompleteRequest) (string, error)
}

// StagedInput drives one staged summarization run.
type StagedInput struct {
	Messages           []Message
	Model              string
	APIKey             string
	ReserveTokens      int
	MaxChunkTokens     int
	ContextWindow      int
	CustomInstructions string
	PreviousSummary    string
}

// SummarizeInStages summarizes a long history by splitting it into
// contiguous segments bounded by MaxChunkTokens and summarizing them in
// order, feeding each segment's summary into the next segment's prompt.
// Segments are never summarized in parallel: segment i+1 must observe
// segment i's result.
func SummarizeInStages(ctx context.Context, client Completer, in StagedInput) (string, error) {
	if len(in.Messages) == 0 {
		return "", ErrNoMessages
	}
	maxChunk := in.MaxChunkTokens
	if maxChunk < 1 {
		maxChunk = 1
	}

	segments := segmentMessages(in.Messages, maxChunk)
	summary := in.PreviousSummary
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		prompt := buildSegmentPrompt(seg, in.CustomInstructions, summary)
		out, err := client.Complete(ctx, CompleteRequest{
			Model:         in.Model,
			APIKey:        in.APIKey,
			Prompt:        prompt,
			ReserveTokens: in.ReserveTokens,
		})
		if err != nil {
			if IsCancelled(err) {
				return "", err
			}
			return "", fmt.Errorf("%w: %v", ErrModelCallFailed, err)
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", fmt.Errorf("%w: empty summary", ErrModelCallFailed)
		}
		summary = out
	}
	return summary, nil
}

// segmentMessages splits messages into contiguous segments each estimated at
// no more than maxChunk tokens. A single message that alone exceeds the
// budget is truncated to the estimator's character budget rather than split
// across segments.
func segmentMessages(msgs []Message, maxChunk int) [][]Message {
	segments := make([][]Message, 0, 4)
	current := make([]Message, 0, len(msgs))
	currentTokens := 0

	for _, m := range msgs {
		tokens := EstimateMessageTokens(m)
		if tokens > maxChunk {
			m = truncateMessageToBudget(m, maxChunk)
			tokens = EstimateMessageTokens(m)
		}
		if len(current) > 0 && currentTokens+tokens > maxChunk {
			segments = append(segments, current)
			current = make([]Message, 0, 8)
			currentTokens = 0
		}
		current = append(current, m)
		currentTokens += tokens
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}

func truncateMessageToBudget(m Message, maxChunk int) Message {
	budget := (maxChunk - messageOverhead) * charsPerToken
	if budget < charsPerToken {
		budget = charsPerToken
	}
	text := m.ExtractText()
	if len(text) <= budget {
		return m
	}
	return Message{
		Role:       m.Role,
		Text:       text[:budget],
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
		IsError:    m.IsError,
		Details:    m.Details,
	}
}

func buildSegmentPrompt(seg []Message, instructions, previousSummary string) string {
	var sb strings.Builder
	if instructions != "" {
		sb.WriteString(instructions)
		sb.WriteString("\n\n")
	}
	if strings.TrimSpace(previousSummary) != "" {
		sb.WriteString("Summary of the conversation so far:\n\n")
		sb.WriteString(previousSummary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Conversation to summarize:\n\n")
	for _, m := range seg {
		text := strings.TrimSpace(m.ExtractText())
		if text == "" {
			continue
		}
		role := m.Role
		if role == RoleToolResult {
			name := m.ToolName
			if name == "" {
				name = "tool"
			}
			role = "tool(" + name + ")"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String()
}
