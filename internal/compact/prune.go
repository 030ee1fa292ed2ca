package compact

// PruneInput configures a pruning pass over summarizable history.
type PruneInput struct {
	Messages         []Message
	MaxContextTokens int
	MaxHistoryShare  float64
	// Parts is the number of roughly-equal buckets the history is split
	// into; pruning removes whole buckets from the front.
	Parts int
}

// PruneResult reports what survived and what was dropped, both in original
// order.
type PruneResult struct {
	Messages      []Message
	DroppedChunks int
	Dropped       []Message
}

// PruneHistoryForContextShare drops the oldest buckets of history until the
// estimated token count of the remainder fits within
// floor(MaxContextTokens * MaxHistoryShare).
func PruneHistoryForContextShare(in PruneInput) PruneResult {
	parts := in.Parts
	if parts <= 0 {
		parts = 2
	}
	budget := int(float64(in.MaxContextTokens) * in.MaxHistoryShare)

	// Bucket size is fixed up front: parts roughly-equal slices of the
	// original input.
	chunk := (len(in.Messages) + parts - 1) / parts
	if chunk < 1 {
		chunk = 1
	}

	remaining := in.Messages
	result := PruneResult{}
	for len(remaining) > 0 && EstimateMessagesTokens(remaining) > budget {
		n := chunk
		if n > len(remaining) {
			n = len(remaining)
		}
		result.Dropped = append(result.Dropped, remaining[:n]...)
		remaining = remaining[n:]
		result.DroppedChunks++
	}
	result.Messages = remaining
	return result
}
