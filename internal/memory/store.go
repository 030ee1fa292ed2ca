package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Store holds the chunk corpus: a chunks table with embedding blobs plus
// an FTS5 mirror kept in sync by triggers. An accelerated vector index
// may be attached; without one, vector search scans stored embeddings.
type Store struct {
	db    *sql.DB
	mu    sync.Mutex
	idxMu sync.RWMutex
	index VectorIndex
}

// IndexMatch is one hit from an accelerated vector index: chunk id plus
// cosine distance.
type IndexMatch struct {
	ID       string
	Distance float64
}

// VectorIndex is an optional accelerated dense index over the corpus.
type VectorIndex interface {
	// EnsureReady reports whether the index can serve queries of the
	// given dimensionality, building or loading state as needed.
	EnsureReady(ctx context.Context, dim int) (bool, error)
	// Search returns the closest chunk ids by cosine distance, ascending,
	// restricted to the given embedding model and source labels.
	Search(ctx context.Context, query []float32, limit int, model string, sources []string) ([]IndexMatch, error)
}

// Open opens (creating if needed) the chunk store at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			start_line INTEGER NOT NULL DEFAULT 0,
			end_line INTEGER NOT NULL DEFAULT 0,
			text TEXT NOT NULL,
			embedding BLOB,
			source TEXT NOT NULL DEFAULT '',
			updated_at INTEGER,
			model TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_model_source ON chunks(model, source)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			text,
			content='chunks',
			content_rowid='rowid',
			tokenize='unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
			INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.rowid, old.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES('delete', old.rowid, old.text);
			INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetVectorIndex attaches an accelerated dense index; nil detaches it.
func (s *Store) SetVectorIndex(idx VectorIndex) {
	s.idxMu.Lock()
	s.index = idx
	s.idxMu.Unlock()
}

func (s *Store) vectorIndexSnapshot() VectorIndex {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	return s.index
}

// UpsertChunks writes chunks by id, replacing text, embedding and
// provenance of existing rows.
func (s *Store) UpsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, path, start_line, end_line, text, embedding, source, updated_at, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			text = excluded.text,
			embedding = excluded.embedding,
			source = excluded.source,
			updated_at = excluded.updated_at,
			model = excluded.model
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("upsert chunk: empty id for path %q", c.Path)
		}
		var blob []byte
		if len(c.Embedding) > 0 {
			blob, err = EncodeVector(c.Embedding)
			if err != nil {
				return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
			}
		}
		var updatedAt any
		if c.UpdatedAt != nil {
			updatedAt = *c.UpdatedAt
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Path, c.StartLine, c.EndLine, c.Text, blob, c.Source, updatedAt, c.Model); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// DeleteBySource removes every chunk carrying the given source label and
// reports how many rows went away.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("delete by source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete by source rows: %w", err)
	}
	return n, nil
}

// Stats summarizes the corpus.
type Stats struct {
	Chunks   int
	Embedded int
	Sources  int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(embedding),
		       COUNT(DISTINCT source)
		FROM chunks
	`)
	if err := row.Scan(&st.Chunks, &st.Embedded, &st.Sources); err != nil {
		return Stats{}, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}

// sourceFilter composes the parameterized WHERE fragment restricting a
// query to the given source labels. Empty sources means no restriction.
func sourceFilter(sources []string) (string, []any) {
	filtered := make([]string, 0, len(sources))
	for _, src := range sources {
		if src = strings.TrimSpace(src); src != "" {
			filtered = append(filtered, src)
		}
	}
	if len(filtered) == 0 {
		return "", nil
	}
	marks := make([]string, len(filtered))
	args := make([]any, len(filtered))
	for i, src := range filtered {
		marks[i] = "?"
		args[i] = src
	}
	return " AND source IN (" + strings.Join(marks, ",") + ")", args
}
