package memory

import (
	"math"
	"regexp"
	"strings"
)

var ftsWordRegex = regexp.MustCompile(`[A-Za-z0-9_]+`)

// BuildFtsQuery turns a raw query into an FTS5 MATCH expression: every
// alphanumeric run quoted and AND-joined. Returns "" when the query
// contains no indexable word.
func BuildFtsQuery(raw string) string {
	words := ftsWordRegex.FindAllString(raw, -1)
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		quoted = append(quoted, `"`+w+`"`)
	}
	if len(quoted) == 0 {
		return ""
	}
	return strings.Join(quoted, " AND ")
}

// BM25RankToScore maps a raw bm25() rank (lower is better, may be
// negative) onto (0, 1]. Non-finite ranks are treated as rank 999.
func BM25RankToScore(rank float64) float64 {
	if math.IsNaN(rank) || math.IsInf(rank, 0) {
		rank = 999
	}
	if rank < 0 {
		rank = 0
	}
	return 1 / (1 + rank)
}
