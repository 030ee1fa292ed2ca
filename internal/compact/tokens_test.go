package compact

import (
	"strings"
	"testing"
)

func TestEstimateMessageTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 3},
		{"abcd", 4},
		{"abcde", 5},
		{strings.Repeat("x", 400), 103},
	}
	for _, tc := range cases {
		got := EstimateMessageTokens(TextMessage(RoleUser, tc.text))
		if got != tc.want {
			t.Fatalf("EstimateMessageTokens(%d chars)=%d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func TestEstimateMessageTokensMonotonic(t *testing.T) {
	prev := 0
	for n := 0; n <= 64; n++ {
		got := EstimateMessageTokens(TextMessage(RoleUser, strings.Repeat("a", n)))
		if got < prev {
			t.Fatalf("estimate decreased at %d chars: %d < %d", n, got, prev)
		}
		prev = got
	}
}

func TestEstimateMessagesTokensAdditive(t *testing.T) {
	msgs := []Message{
		TextMessage(RoleUser, "hello there"),
		TextMessage(RoleAssistant, "hi"),
	}
	sum := EstimateMessageTokens(msgs[0]) + EstimateMessageTokens(msgs[1])
	if got := EstimateMessagesTokens(msgs); got != sum {
		t.Fatalf("EstimateMessagesTokens=%d, want %d", got, sum)
	}
	if EstimateMessagesTokens(nil) != 0 {
		t.Fatal("empty input should estimate to zero")
	}
}

func TestEstimateUsesBlockContent(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Text: "ignored",
		Blocks: []ContentBlock{
			{Type: "text", Text: "block one"},
			{Type: "image"},
			{Type: "text", Text: "block two"},
		},
	}
	want := EstimateMessageTokens(TextMessage(RoleAssistant, "block one\nblock two"))
	if got := EstimateMessageTokens(msg); got != want {
		t.Fatalf("block estimate=%d, want %d", got, want)
	}
}
