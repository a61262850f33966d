package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/bryanwahyu/drishti/internal/domain/knowledge"
)

// Connect opens a pooled connection and pings it.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Store is a pgvector-backed knowledge.VectorStore.
type Store struct {
	db       *sql.DB
	embedder knowledge.Embedder
	table    string
	dims     int
}

func NewStore(db *sql.DB, embedder knowledge.Embedder, table string, dims int) *Store {
	return &Store{db: db, embedder: embedder, table: pq.QuoteIdentifier(table), dims: dims}
}

// EnsureSchema creates the extension and the chunk table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
 id TEXT PRIMARY KEY,
 source TEXT NOT NULL,
 chunk_index INT NOT NULL,
 content TEXT NOT NULL,
 embedding vector(%d) NOT NULL
)`, s.table, s.dims),
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) SimilaritySearch(ctx context.Context, text string, k int) ([]knowledge.Passage, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	q := fmt.Sprintf(`
SELECT content, source, embedding <-> $1::vector AS distance
FROM %s
ORDER BY distance
LIMIT $2;`, s.table)
	rows, err := s.db.QueryContext(ctx, q, VectorLiteral(vecs[0]), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []knowledge.Passage{}
	for rows.Next() {
		var p knowledge.Passage
		if err := rows.Scan(&p.PageContent, &p.Source, &p.Distance); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert insert/update chunk dalam satu transaksi
func (s *Store) Upsert(ctx context.Context, chunks []knowledge.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	q := fmt.Sprintf(`
INSERT INTO %s (id, source, chunk_index, content, embedding)
VALUES ($1,$2,$3,$4,$5::vector)
ON CONFLICT (id) DO UPDATE SET
 source = EXCLUDED.source,
 chunk_index = EXCLUDED.chunk_index,
 content = EXCLUDED.content,
 embedding = EXCLUDED.embedding;`, s.table)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if s.dims > 0 && len(c.Embedding) != s.dims {
			return fmt.Errorf("chunk %s: embedding has %d dims, want %d", c.ID, len(c.Embedding), s.dims)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Source, c.Index, c.Content, VectorLiteral(c.Embedding)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Ping is used by the health checker.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// VectorLiteral renders v in pgvector text form, e.g. [0.1,0.2].
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
