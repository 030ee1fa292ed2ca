package compact

// ComputeAdaptiveChunkRatio picks the per-stage summarization chunk size as
// a fraction of the context window. Histories made of small messages use the
// base ratio; once the average message grows past 10% of the window the
// ratio shrinks proportionally, bounded below by minChunkRatio.
func ComputeAdaptiveChunkRatio(msgs []Message, contextWindow int) float64 {
	if len(msgs) == 0 {
		return baseChunkRatio
	}
	if contextWindow <= 0 {
		contextWindow = defaultContextWindow
	}

	avg := float64(EstimateMessagesTokens(msgs)) / float64(len(msgs))
	threshold := 0.1 * float64(contextWindow)
	if avg <= threshold {
		return baseChunkRatio
	}

	ratio := baseChunkRatio * threshold / avg
	if ratio < minChunkRatio {
		return minChunkRatio
	}
	return ratio
}

// IsOversizedForSummary reports whether a single message is too large to be
// summarized in one piece: its padded estimate exceeds half the window.
func IsOversizedForSummary(msg Message, contextWindow int) bool {
	if contextWindow <= 0 {
		contextWindow = defaultContextWindow
	}
	return float64(EstimateMessageTokens(msg))*safetyMargin > float64(contextWindow)*0.5
}
