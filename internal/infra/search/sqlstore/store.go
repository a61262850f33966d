package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/bryanwahyu/drishti/internal/domain/knowledge"
)

// Dialect selects SQL flavour and driver.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

func (d Dialect) driver() string { return string(d) }

// Store keeps chunk embeddings as JSON and ranks them in process by L2
// distance. Suited to small corpora where a vector extension is unavailable.
type Store struct {
	db       *sql.DB
	dialect  Dialect
	embedder knowledge.Embedder
	table    string
}

func NewStore(db *sql.DB, dialect Dialect, embedder knowledge.Embedder, table string) *Store {
	return &Store{db: db, dialect: dialect, embedder: embedder, table: table}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	var q string
	switch s.dialect {
	case MySQL:
		q = fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` (\n"+
			" id VARCHAR(64) PRIMARY KEY,\n"+
			" source VARCHAR(512) NOT NULL,\n"+
			" chunk_index INT NOT NULL,\n"+
			" content MEDIUMTEXT NOT NULL,\n"+
			" embedding JSON NOT NULL\n"+
			")", s.table)
	default:
		q = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (
 id TEXT PRIMARY KEY,
 source TEXT NOT NULL,
 chunk_index INTEGER NOT NULL,
 content TEXT NOT NULL,
 embedding TEXT NOT NULL
)`, s.table)
	}
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) quoted() string {
	if s.dialect == MySQL {
		return "`" + s.table + "`"
	}
	return `"` + s.table + `"`
}

func (s *Store) upsertQuery() string {
	if s.dialect == MySQL {
		return fmt.Sprintf(`
INSERT INTO %s (id, source, chunk_index, content, embedding)
VALUES (?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 source = VALUES(source),
 chunk_index = VALUES(chunk_index),
 content = VALUES(content),
 embedding = VALUES(embedding);`, s.quoted())
	}
	return fmt.Sprintf(`
INSERT INTO %s (id, source, chunk_index, content, embedding)
VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
 source = excluded.source,
 chunk_index = excluded.chunk_index,
 content = excluded.content,
 embedding = excluded.embedding;`, s.quoted())
}

func (s *Store) Upsert(ctx context.Context, chunks []knowledge.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := s.upsertQuery()
	for _, c := range chunks {
		vec, err := json.Marshal(c.Embedding)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, c.ID, stringOrDash(c.Source), c.Index, c.Content, string(vec)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

type scored struct {
	id string
	knowledge.Passage
}

func (s *Store) SimilaritySearch(ctx context.Context, text string, k int) ([]knowledge.Passage, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	query := vecs[0]

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, content, source, embedding FROM %s", s.quoted()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []scored
	for rows.Next() {
		var (
			item scored
			raw  string
			vec  []float32
		)
		if err := rows.Scan(&item.id, &item.PageContent, &item.Source, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return nil, fmt.Errorf("chunk %s: decode embedding: %w", item.id, err)
		}
		d, err := l2(query, vec)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", item.id, err)
		}
		item.Distance = d
		all = append(all, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance < all[j].Distance
		}
		return all[i].id < all[j].id
	})
	if k < len(all) {
		all = all[:k]
	}
	out := make([]knowledge.Passage, len(all))
	for i, item := range all {
		out[i] = item.Passage
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func l2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
