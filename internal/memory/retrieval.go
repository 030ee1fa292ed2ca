package memory

import "context"

const (
	defaultVectorWeight = 0.7
	defaultTextWeight   = 0.3
)

// HybridQuery parameterizes one end-to-end retrieval: dense plus lexical
// search fused into a single ranking.
type HybridQuery struct {
	Query            string
	Vector           []float32
	Limit            int
	Model            string
	Sources          []string
	Recency          RecencyConfig
	VectorWeight     float64
	TextWeight       float64
	DynamicThreshold bool
	SnippetMaxChars  int
}

// SearchHybrid runs the vector and keyword primitives over the same
// corpus slice and merges their rankings. A missing query vector yields
// a lexical-only ranking; a query with no indexable words yields a
// dense-only ranking.
func (s *Store) SearchHybrid(ctx context.Context, q HybridQuery) ([]HybridResult, error) {
	if q.VectorWeight <= 0 && q.TextWeight <= 0 {
		q.VectorWeight = defaultVectorWeight
		q.TextWeight = defaultTextWeight
	}

	vector, err := s.SearchVector(ctx, VectorQuery{
		Vector:          q.Vector,
		Limit:           q.Limit,
		Model:           q.Model,
		Sources:         q.Sources,
		Recency:         q.Recency,
		SnippetMaxChars: q.SnippetMaxChars,
	})
	if err != nil {
		return nil, err
	}

	keyword, err := s.SearchKeyword(ctx, KeywordQuery{
		Query:           q.Query,
		Limit:           q.Limit,
		Model:           q.Model,
		Sources:         q.Sources,
		SnippetMaxChars: q.SnippetMaxChars,
	})
	if err != nil {
		return nil, err
	}

	merged := MergeHybridResults(MergeInput{
		Vector:           vector,
		Keyword:          keyword,
		VectorWeight:     q.VectorWeight,
		TextWeight:       q.TextWeight,
		DynamicThreshold: q.DynamicThreshold,
	})
	if q.Limit > 0 && len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}
	return merged, nil
}
