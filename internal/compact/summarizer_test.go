package compact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// scriptedCompleter replays canned outputs and records every prompt.
type scriptedCompleter struct {
	outputs []string
	err     error
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, req CompleteRequest) (string, error) {
	c.prompts = append(c.prompts, req.Prompt)
	if c.err != nil {
		return "", c.err
	}
	i := len(c.prompts) - 1
	if i < len(c.outputs) {
		return c.outputs[i], nil
	}
	return "final summary", nil
}

func TestSummarizeInStagesSingleSegment(t *testing.T) {
	client := &scriptedCompleter{outputs: []string{"one-shot summary"}}
	got, err := SummarizeInStages(context.Background(), client, StagedInput{
		Messages: []Message{
			TextMessage(RoleUser, "question"),
			TextMessage(RoleAssistant, "answer"),
		},
		MaxChunkTokens: 1000,
	})
	if err != nil {
		t.Fatalf("SummarizeInStages error: %v", err)
	}
	if got != "one-shot summary" {
		t.Fatalf("summary=%q", got)
	}
	if len(client.prompts) != 1 {
		t.Fatalf("calls=%d, want 1", len(client.prompts))
	}
}

func TestSummarizeInStagesChainsSegments(t *testing.T) {
	msgs := make([]Message, 6)
	for i := range msgs {
		msgs[i] = TextMessage(RoleUser, fmt.Sprintf("message %d %s", i, strings.Repeat("x", 200)))
	}
	client := &scriptedCompleter{outputs: []string{"summary A", "summary B", "summary C"}}

	got, err := SummarizeInStages(context.Background(), client, StagedInput{
		Messages:        msgs,
		MaxChunkTokens:  120,
		PreviousSummary: "the story so far",
	})
	if err != nil {
		t.Fatalf("SummarizeInStages error: %v", err)
	}
	if len(client.prompts) < 2 {
		t.Fatalf("expected multiple segments, got %d call(s)", len(client.prompts))
	}
	// First segment sees the previous summary, each later segment sees its
	// predecessor's output.
	if !strings.Contains(client.prompts[0], "the story so far") {
		t.Fatal("previous summary missing from first prompt")
	}
	if !strings.Contains(client.prompts[1], "summary A") {
		t.Fatal("second prompt should chain the first segment's summary")
	}
	if got != client.outputs[len(client.prompts)-1] {
		t.Fatalf("final summary=%q", got)
	}
}

func TestSummarizeInStagesSegmentPromptFormat(t *testing.T) {
	exitCode := 2
	client := &scriptedCompleter{outputs: []string{"s"}}
	_, err := SummarizeInStages(context.Background(), client, StagedInput{
		Messages: []Message{
			TextMessage(RoleUser, "run it"),
			{Role: RoleToolResult, Text: "exit status 2", ToolCallID: "c1", ToolName: "exec", IsError: true, Details: &ToolDetails{ExitCode: &exitCode}},
		},
		MaxChunkTokens:     1000,
		CustomInstructions: "keep ports",
	})
	if err != nil {
		t.Fatalf("SummarizeInStages error: %v", err)
	}
	prompt := client.prompts[0]
	if !strings.HasPrefix(prompt, "keep ports") {
		t.Fatal("instructions should lead the prompt")
	}
	if !strings.Contains(prompt, "user: run it") {
		t.Fatal("user line missing")
	}
	if !strings.Contains(prompt, "tool(exec): exit status 2") {
		t.Fatalf("tool result line malformed: %q", prompt)
	}
}

func TestSummarizeInStagesOversizedSingleton(t *testing.T) {
	huge := TextMessage(RoleUser, strings.Repeat("a", 5000))
	client := &scriptedCompleter{outputs: []string{"s"}}
	_, err := SummarizeInStages(context.Background(), client, StagedInput{
		Messages:       []Message{huge},
		MaxChunkTokens: 100,
	})
	if err != nil {
		t.Fatalf("SummarizeInStages error: %v", err)
	}
	budget := (100 - messageOverhead) * charsPerToken
	if strings.Contains(client.prompts[0], strings.Repeat("a", budget+1)) {
		t.Fatal("oversized message not truncated to the chunk budget")
	}
}

func TestSummarizeInStagesEmptyInput(t *testing.T) {
	_, err := SummarizeInStages(context.Background(), &scriptedCompleter{}, StagedInput{})
	if !errors.Is(err, ErrNoMessages) {
		t.Fatalf("err=%v, want ErrNoMessages", err)
	}
}

func TestSummarizeInStagesEmptyOutput(t *testing.T) {
	client := &scriptedCompleter{outputs: []string{"   "}}
	_, err := SummarizeInStages(context.Background(), client, StagedInput{
		Messages:       []Message{TextMessage(RoleUser, "x")},
		MaxChunkTokens: 100,
	})
	if !errors.Is(err, ErrModelCallFailed) {
		t.Fatalf("err=%v, want ErrModelCallFailed", err)
	}
}

func TestSummarizeInStagesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SummarizeInStages(ctx, &scriptedCompleter{}, StagedInput{
		Messages:       []Message{TextMessage(RoleUser, "x")},
		MaxChunkTokens: 100,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}
