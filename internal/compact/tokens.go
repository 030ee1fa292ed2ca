package compact

// EstimateMessageTokens approximates the token cost of a single message
// using the charsPerToken heuristic plus a fixed framing overhead. The
// estimate is monotonic in content length and never negative.
func EstimateMessageTokens(msg Message) int {
	chars := len(msg.ExtractText())
	return (chars+charsPerToken-1)/charsPerToken + messageOverhead
}

// EstimateMessagesTokens approximates the token cost of a message sequence.
// Adding a message never decreases the estimate.
func EstimateMessagesTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessageTokens(m)
	}
	return total
}
