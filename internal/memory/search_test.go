package memory

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"
	"unicode/utf16"
)

func millisPtr(v int64) *int64 { return &v }

func TestCalculateRecencyPenaltyHalfWindow(t *testing.T) {
	now := time.Now().UnixMilli()
	updated := now - 7*millisPerDay
	got := CalculateRecencyPenalty(millisPtr(updated), now, 0.08, 14)
	if math.Abs(got-0.04) > 1e-5 {
		t.Fatalf("penalty=%v, want 0.04", got)
	}
}

func TestCalculateRecencyPenaltyBounds(t *testing.T) {
	now := int64(1_700_000_000_000)

	if got := CalculateRecencyPenalty(nil, now, 0.08, 14); got != 0 {
		t.Fatalf("nil timestamp penalty=%v, want 0", got)
	}
	if got := CalculateRecencyPenalty(millisPtr(now+1000), now, 0.08, 14); got != 0 {
		t.Fatalf("future timestamp penalty=%v, want 0", got)
	}
	if got := CalculateRecencyPenalty(millisPtr(now), now, 0.08, 14); got != 0 {
		t.Fatalf("zero-age penalty=%v, want 0", got)
	}
	// At or beyond the window the penalty saturates at lambda.
	old := now - 20*millisPerDay
	if got := CalculateRecencyPenalty(millisPtr(old), now, 0.08, 14); got != 0.08 {
		t.Fatalf("saturated penalty=%v, want lambda", got)
	}
}

func TestCalculateRecencyPenaltyMonotonic(t *testing.T) {
	now := int64(1_700_000_000_000)
	prev := -1.0
	for days := int64(0); days <= 20; days++ {
		got := CalculateRecencyPenalty(millisPtr(now-days*millisPerDay), now, 0.08, 14)
		if got < prev {
			t.Fatalf("penalty decreased at age %d days: %v < %v", days, got, prev)
		}
		if got > 0.08 {
			t.Fatalf("penalty %v above lambda", got)
		}
		prev = got
	}
}

func TestTruncateUTF16(t *testing.T) {
	if got := truncateUTF16("hello", 10); got != "hello" {
		t.Fatalf("short string changed: %q", got)
	}
	if got := truncateUTF16("hello", 3); got != "hel" {
		t.Fatalf("got %q, want hel", got)
	}

	// Astral-plane runes cost two UTF-16 units; the cut must never land
	// inside a surrogate pair.
	s := "a😀b😀c"
	for limit := 0; limit <= 8; limit++ {
		got := truncateUTF16(s, limit)
		units := len(utf16.Encode([]rune(got)))
		if units > limit {
			t.Fatalf("limit %d: %d units", limit, units)
		}
		for _, r := range got {
			if r == 0xFFFD {
				t.Fatalf("limit %d produced a broken surrogate: %q", limit, got)
			}
		}
	}
	if got := truncateUTF16("a😀b", 2); got != "a" {
		t.Fatalf("got %q, want a (surrogate pair must not split)", got)
	}
}

func seedStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	now := time.Now().UnixMilli()
	chunks := []Chunk{
		{
			ID: "c1", Path: "auth/login.go", StartLine: 10, EndLine: 40,
			Text:      "session token validation and refresh logic",
			Embedding: []float32{1, 0, 0},
			Source:    "repo", UpdatedAt: millisPtr(now), Model: "test-embed",
		},
		{
			ID: "c2", Path: "auth/logout.go", StartLine: 1, EndLine: 20,
			Text:      "logout clears the session cookie",
			Embedding: []float32{0, 1, 0},
			Source:    "repo", UpdatedAt: millisPtr(now - 30*millisPerDay), Model: "test-embed",
		},
		{
			ID: "c3", Path: "docs/notes.md", StartLine: 1, EndLine: 5,
			Text:   "unrelated planning notes",
			Source: "notes", Model: "test-embed",
		},
	}
	if err := s.UpsertChunks(context.Background(), chunks); err != nil {
		t.Fatalf("UpsertChunks error: %v", err)
	}
	return s
}

func TestSearchVectorFallbackScan(t *testing.T) {
	s := seedStore(t)

	results, err := s.SearchVector(context.Background(), VectorQuery{
		Vector: []float32{1, 0, 0},
		Limit:  5,
		Model:  "test-embed",
	})
	if err != nil {
		t.Fatalf("SearchVector error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d, want 2 embedded chunks", len(results))
	}
	if results[0].ID != "c1" {
		t.Fatalf("top result=%s, want c1", results[0].ID)
	}
	if math.Abs(results[0].Score-1) > 1e-6 {
		t.Fatalf("top score=%v, want 1", results[0].Score)
	}
	if results[0].Snippet == "" {
		t.Fatal("snippet should be populated")
	}
}

func TestSearchVectorRecencyReorders(t *testing.T) {
	s := seedStore(t)

	// Query equidistant-ish: c2 matches slightly better but is 30 days
	// old; with a strong recency penalty c1 overtakes it.
	results, err := s.SearchVector(context.Background(), VectorQuery{
		Vector: []float32{0.8, 1, 0},
		Limit:  5,
		Model:  "test-embed",
		Recency: RecencyConfig{
			Enabled:    true,
			Lambda:     0.5,
			WindowDays: 14,
		},
	})
	if err != nil {
		t.Fatalf("SearchVector error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d", len(results))
	}
	if results[0].ID != "c1" {
		t.Fatalf("recency penalty should demote the stale chunk, top=%s", results[0].ID)
	}
	for _, r := range results {
		if r.Score < 0 {
			t.Fatalf("penalized score %v below zero", r.Score)
		}
	}
}

func TestSearchVectorSourceFilter(t *testing.T) {
	s := seedStore(t)

	results, err := s.SearchVector(context.Background(), VectorQuery{
		Vector:  []float32{1, 1, 0},
		Limit:   5,
		Model:   "test-embed",
		Sources: []string{"notes"},
	})
	if err != nil {
		t.Fatalf("SearchVector error: %v", err)
	}
	// The notes chunk has no embedding, so the filter leaves nothing.
	if len(results) != 0 {
		t.Fatalf("results=%d, want 0", len(results))
	}
}

func TestSearchVectorEmptyInputs(t *testing.T) {
	s := seedStore(t)
	if res, err := s.SearchVector(context.Background(), VectorQuery{Limit: 5}); err != nil || res != nil {
		t.Fatalf("nil vector: res=%v err=%v", res, err)
	}
	if res, err := s.SearchVector(context.Background(), VectorQuery{Vector: []float32{1}, Limit: 0}); err != nil || res != nil {
		t.Fatalf("zero limit: res=%v err=%v", res, err)
	}
}

func TestSearchKeyword(t *testing.T) {
	s := seedStore(t)

	results, err := s.SearchKeyword(context.Background(), KeywordQuery{
		Query: "session token",
		Limit: 5,
		Model: "test-embed",
	})
	if err != nil {
		t.Fatalf("SearchKeyword error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results=%d, want 1 (only c1 has both words)", len(results))
	}
	if results[0].ID != "c1" {
		t.Fatalf("top result=%s", results[0].ID)
	}
	if results[0].Score <= 0 || results[0].Score > 1 {
		t.Fatalf("score=%v outside (0,1]", results[0].Score)
	}
}

func TestSearchKeywordNoIndexableWords(t *testing.T) {
	s := seedStore(t)
	results, err := s.SearchKeyword(context.Background(), KeywordQuery{
		Query: "!!! ???",
		Limit: 5,
		Model: "test-embed",
	})
	if err != nil {
		t.Fatalf("SearchKeyword error: %v", err)
	}
	if results != nil {
		t.Fatalf("results=%v, want nil", results)
	}
}

func TestSearchHybridEndToEnd(t *testing.T) {
	s := seedStore(t)

	results, err := s.SearchHybrid(context.Background(), HybridQuery{
		Query:  "session token",
		Vector: []float32{1, 0, 0},
		Limit:  5,
		Model:  "test-embed",
	})
	if err != nil {
		t.Fatalf("SearchHybrid error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].Path != "auth/login.go" {
		t.Fatalf("top path=%s", results[0].Path)
	}
	if results[0].VectorScore == 0 || results[0].TextScore == 0 {
		t.Fatalf("both sides should contribute: %+v", results[0])
	}
}

// fixedIndex is an accelerated index stub returning canned matches.
type fixedIndex struct {
	ready   bool
	matches []IndexMatch
}

func (f *fixedIndex) EnsureReady(context.Context, int) (bool, error) { return f.ready, nil }
func (f *fixedIndex) Search(context.Context, []float32, int, string, []string) ([]IndexMatch, error) {
	return f.matches, nil
}

func TestSearchVectorAcceleratedIndex(t *testing.T) {
	s := seedStore(t)
	s.SetVectorIndex(&fixedIndex{
		ready: true,
		matches: []IndexMatch{
			{ID: "c2", Distance: 0.1},
			{ID: "c1", Distance: 0.4},
		},
	})

	results, err := s.SearchVector(context.Background(), VectorQuery{
		Vector: []float32{1, 0, 0},
		Limit:  5,
		Model:  "test-embed",
	})
	if err != nil {
		t.Fatalf("SearchVector error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results=%d", len(results))
	}
	if results[0].ID != "c2" || math.Abs(results[0].Score-0.9) > 1e-9 {
		t.Fatalf("index scoring broken: %s %v", results[0].ID, results[0].Score)
	}
	if results[1].ID != "c1" || math.Abs(results[1].Score-0.6) > 1e-9 {
		t.Fatalf("index scoring broken: %s %v", results[1].ID, results[1].Score)
	}
}

func TestSearchVectorIndexNotReadyFallsBack(t *testing.T) {
	s := seedStore(t)
	s.SetVectorIndex(&fixedIndex{ready: false})

	results, err := s.SearchVector(context.Background(), VectorQuery{
		Vector: []float32{1, 0, 0},
		Limit:  5,
		Model:  "test-embed",
	})
	if err != nil {
		t.Fatalf("SearchVector error: %v", err)
	}
	if len(results) != 2 || results[0].ID != "c1" {
		t.Fatalf("fallback scan broken: %v", results)
	}
}
