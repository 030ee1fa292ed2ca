package memory

// Chunk is one indexed passage of text with its provenance and, when the
// embedder has run, its dense embedding.
type Chunk struct {
	ID        string
	Path      string
	StartLine int
	EndLine   int
	Text      string
	Embedding []float32
	Source    string
	// UpdatedAt is a wall-clock millisecond timestamp; nil means unknown.
	UpdatedAt *int64
	Model     string
}

// VectorResult is a chunk scored by dense similarity.
type VectorResult struct {
	ID        string
	Path      string
	StartLine int
	EndLine   int
	Source    string
	Snippet   string
	UpdatedAt *int64
	Score     float64
}

// KeywordResult is a chunk scored by normalized BM25 rank.
type KeywordResult struct {
	ID        string
	Path      string
	StartLine int
	EndLine   int
	Source    string
	Snippet   string
	Score     float64
}

// HybridResult is the fused ranking record handed to callers. It carries
// no chunk id, embedding or timestamp.
type HybridResult struct {
	Path        string
	StartLine   int
	EndLine     int
	Source      string
	Snippet     string
	VectorScore float64
	TextScore   float64
	Score       float64
}

func (r VectorResult) Relevance() float64  { return r.Score }
func (r KeywordResult) Relevance() float64 { return r.Score }
func (r HybridResult) Relevance() float64  { return r.Score }

// RecencyConfig controls the subtractive age penalty on vector scores.
type RecencyConfig struct {
	Enabled    bool
	Lambda     float64
	WindowDays int
}

const (
	defaultRecencyLambda     = 0.08
	defaultRecencyWindowDays = 14
)

func (c RecencyConfig) normalized() RecencyConfig {
	if c.Lambda < 0 {
		c.Lambda = 0
	}
	if c.Lambda > 1 {
		c.Lambda = 1
	}
	if c.WindowDays < 1 {
		c.WindowDays = defaultRecencyWindowDays
	}
	if c.WindowDays > 365 {
		c.WindowDays = 365
	}
	return c
}
