package memory

import "sort"

// Dynamic threshold tiers: confident top results tighten the cutoff,
// weak ones fall back to a fixed floor.
const (
	thresholdHighCut  = 0.7
	thresholdMedCut   = 0.3
	thresholdHighMult = 0.5
	thresholdMedMult  = 0.6
	thresholdFloor    = 0.15
)

// MergeInput parameterizes a hybrid fusion of one vector and one keyword
// result set over the same corpus.
type MergeInput struct {
	Vector           []VectorResult
	Keyword          []KeywordResult
	VectorWeight     float64
	TextWeight       float64
	DynamicThreshold bool
}

// MergeHybridResults fuses the two result sets into a single ranking:
// one entry per chunk id, scored vectorWeight*vectorScore +
// textWeight*textScore, sorted descending, optionally cut at the dynamic
// threshold derived from the top score.
func MergeHybridResults(in MergeInput) []HybridResult {
	type entry struct {
		result HybridResult
	}
	order := make([]string, 0, len(in.Vector)+len(in.Keyword))
	byID := make(map[string]*entry, len(in.Vector)+len(in.Keyword))

	for _, v := range in.Vector {
		if _, exists := byID[v.ID]; exists {
			continue
		}
		byID[v.ID] = &entry{result: HybridResult{
			Path:        v.Path,
			StartLine:   v.StartLine,
			EndLine:     v.EndLine,
			Source:      v.Source,
			Snippet:     v.Snippet,
			VectorScore: v.Score,
		}}
		order = append(order, v.ID)
	}

	for _, k := range in.Keyword {
		if e, exists := byID[k.ID]; exists {
			e.result.TextScore = k.Score
			if k.Snippet != "" {
				e.result.Snippet = k.Snippet
			}
			continue
		}
		byID[k.ID] = &entry{result: HybridResult{
			Path:      k.Path,
			StartLine: k.StartLine,
			EndLine:   k.EndLine,
			Source:    k.Source,
			Snippet:   k.Snippet,
			TextScore: k.Score,
		}}
		order = append(order, k.ID)
	}

	merged := make([]HybridResult, 0, len(order))
	for _, id := range order {
		r := byID[id].result
		r.Score = in.VectorWeight*r.VectorScore + in.TextWeight*r.TextScore
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return ApplyDynamicThreshold(merged, in.DynamicThreshold)
}

// CalculateDynamicThreshold derives the relevance cutoff from the top
// result's score.
func CalculateDynamicThreshold(top float64) float64 {
	switch {
	case top >= thresholdHighCut:
		return thresholdHighMult * top
	case top >= thresholdMedCut:
		return thresholdMedMult * top
	default:
		return thresholdFloor
	}
}

// Scored is any ranked record exposing its relevance score.
type Scored interface {
	Relevance() float64
}

// ApplyDynamicThreshold trims a descending-sorted result list at the
// dynamic threshold of its top entry. Disabled or empty input passes
// through unchanged.
func ApplyDynamicThreshold[T Scored](sorted []T, enabled bool) []T {
	if !enabled || len(sorted) == 0 {
		return sorted
	}
	cutoff := CalculateDynamicThreshold(sorted[0].Relevance())
	kept := sorted[:0:0]
	for _, r := range sorted {
		if r.Relevance() >= cutoff {
			kept = append(kept, r)
		}
	}
	return kept
}
