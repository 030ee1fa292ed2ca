package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"
	"unicode/utf16"
)

const (
	defaultSnippetMaxChars = 240
	millisPerDay           = 86_400_000
)

// VectorQuery parameterizes a dense search.
type VectorQuery struct {
	Vector          []float32
	Limit           int
	Model           string
	Sources         []string
	Recency         RecencyConfig
	SnippetMaxChars int
}

// KeywordQuery parameterizes a lexical search.
type KeywordQuery struct {
	Query           string
	Limit           int
	Model           string
	Sources         []string
	SnippetMaxChars int
}

// SearchVector ranks chunks by cosine similarity to the query vector. It
// uses the attached accelerated index when that index is ready for the
// query's dimensionality; otherwise it scans stored embeddings. With
// recency enabled, each score is reduced by an age penalty and clamped
// at zero before the final ordering.
func (s *Store) SearchVector(ctx context.Context, q VectorQuery) ([]VectorResult, error) {
	if q.Limit <= 0 || len(q.Vector) == 0 {
		return nil, nil
	}

	results, err := s.searchVectorIndexed(ctx, q)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results, err = s.searchVectorScan(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	recency := q.Recency.normalized()
	if q.Recency.Enabled {
		now := time.Now().UnixMilli()
		for i := range results {
			penalty := CalculateRecencyPenalty(results[i].UpdatedAt, now, recency.Lambda, recency.WindowDays)
			score := results[i].Score - penalty
			if score < 0 {
				score = 0
			}
			results[i].Score = score
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
	}
	return results, nil
}

// searchVectorIndexed runs the accelerated path. A nil, nil return means
// no usable index and the caller should fall back to the scan.
func (s *Store) searchVectorIndexed(ctx context.Context, q VectorQuery) ([]VectorResult, error) {
	idx := s.vectorIndexSnapshot()
	if idx == nil {
		return nil, nil
	}
	ready, err := idx.EnsureReady(ctx, len(q.Vector))
	if err != nil {
		log.Printf("[memory] vector index unavailable, falling back to scan: %v", err)
		return nil, nil
	}
	if !ready {
		return nil, nil
	}

	matches, err := idx.Search(ctx, q.Vector, q.Limit, q.Model, q.Sources)
	if err != nil {
		return nil, fmt.Errorf("vector index search: %w", err)
	}
	if len(matches) == 0 {
		return []VectorResult{}, nil
	}

	rows, err := s.chunkRowsByID(ctx, matches)
	if err != nil {
		return nil, err
	}

	results := make([]VectorResult, 0, len(matches))
	for _, m := range matches {
		row, ok := rows[m.ID]
		if !ok {
			continue
		}
		results = append(results, VectorResult{
			ID:        row.id,
			Path:      row.path,
			StartLine: row.startLine,
			EndLine:   row.endLine,
			Source:    row.source,
			Snippet:   truncateUTF16(row.text, snippetLimit(q.SnippetMaxChars)),
			UpdatedAt: row.updatedAt,
			Score:     1 - m.Distance,
		})
	}
	return results, nil
}

// searchVectorScan enumerates every embedded chunk for the model/source
// filter and scores it by cosine similarity.
func (s *Store) searchVectorScan(ctx context.Context, q VectorQuery) ([]VectorResult, error) {
	query := `
		SELECT id, path, start_line, end_line, text, embedding, source, updated_at
		FROM chunks
		WHERE embedding IS NOT NULL AND model = ?
	`
	args := []any{q.Model}
	frag, fragArgs := sourceFilter(q.Sources)
	query += frag
	args = append(args, fragArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector scan query: %w", err)
	}
	defer rows.Close()

	results := make([]VectorResult, 0)
	for rows.Next() {
		var row chunkRow
		var blob []byte
		if err := rows.Scan(&row.id, &row.path, &row.startLine, &row.endLine, &row.text, &blob, &row.source, &row.updatedAt); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			log.Printf("[memory] skipping chunk %s: %v", row.id, err)
			continue
		}
		score, err := CosineSimilarity(q.Vector, vec)
		if err != nil || !finite(score) {
			continue
		}
		results = append(results, VectorResult{
			ID:        row.id,
			Path:      row.path,
			StartLine: row.startLine,
			EndLine:   row.endLine,
			Source:    row.source,
			Snippet:   truncateUTF16(row.text, snippetLimit(q.SnippetMaxChars)),
			UpdatedAt: row.updatedAt,
			Score:     score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// SearchKeyword ranks chunks by BM25 over the FTS index. Queries with no
// indexable word return an empty result.
func (s *Store) SearchKeyword(ctx context.Context, q KeywordQuery) ([]KeywordResult, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	match := BuildFtsQuery(q.Query)
	if match == "" {
		return nil, nil
	}

	query := `
		SELECT c.id, c.path, c.start_line, c.end_line, c.text, c.source,
		       bm25(chunks_fts) AS rank
		FROM chunks c
		JOIN chunks_fts f ON c.rowid = f.rowid
		WHERE chunks_fts MATCH ? AND c.model = ?
	`
	args := []any{match, q.Model}
	frag, fragArgs := sourceFilter(q.Sources)
	query += frag
	args = append(args, fragArgs...)
	query += ` ORDER BY bm25(chunks_fts) ASC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	defer rows.Close()

	results := make([]KeywordResult, 0)
	for rows.Next() {
		var r KeywordResult
		var text string
		var rank float64
		if err := rows.Scan(&r.ID, &r.Path, &r.StartLine, &r.EndLine, &text, &r.Source, &rank); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		r.Snippet = truncateUTF16(text, snippetLimit(q.SnippetMaxChars))
		r.Score = BM25RankToScore(rank)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword rows: %w", err)
	}
	return results, nil
}

// CalculateRecencyPenalty returns the subtractive age penalty for a chunk:
// zero when the timestamp is unknown or in the future, otherwise lambda
// scaled by how much of the window has elapsed, capped at lambda.
func CalculateRecencyPenalty(updatedAt *int64, nowMillis int64, lambda float64, windowDays int) float64 {
	if updatedAt == nil || *updatedAt > nowMillis {
		return 0
	}
	age := float64(nowMillis - *updatedAt)
	window := float64(windowDays) * millisPerDay
	ratio := age / window
	if ratio > 1 {
		ratio = 1
	}
	return lambda * ratio
}

type chunkRow struct {
	id        string
	path      string
	startLine int
	endLine   int
	text      string
	source    string
	updatedAt *int64
}

func (s *Store) chunkRowsByID(ctx context.Context, matches []IndexMatch) (map[string]chunkRow, error) {
	ids := make([]any, len(matches))
	marks := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
		marks[i] = "?"
	}
	query := `
		SELECT id, path, start_line, end_line, text, source, updated_at
		FROM chunks
		WHERE id IN (` + joinMarks(marks) + `)`

	rows, err := s.db.QueryContext(ctx, query, ids...)
	if err != nil {
		return nil, fmt.Errorf("load matched chunks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]chunkRow, len(matches))
	for rows.Next() {
		var row chunkRow
		if err := rows.Scan(&row.id, &row.path, &row.startLine, &row.endLine, &row.text, &row.source, &row.updatedAt); err != nil {
			return nil, fmt.Errorf("scan matched chunk: %w", err)
		}
		out[row.id] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matched chunks: %w", err)
	}
	return out, nil
}

func joinMarks(marks []string) string {
	out := ""
	for i, m := range marks {
		if i > 0 {
			out += ","
		}
		out += m
	}
	return out
}

func snippetLimit(n int) int {
	if n <= 0 {
		return defaultSnippetMaxChars
	}
	return n
}

// truncateUTF16 cuts s to at most max UTF-16 code units without splitting
// a surrogate pair.
func truncateUTF16(s string, max int) string {
	units := 0
	for i, r := range s {
		w := 1
		if utf16.RuneLen(r) == 2 {
			w = 2
		}
		if units+w > max {
			return s[:i]
		}
		units += w
	}
	return s
}
