package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/bryanwahyu/drishti/internal/domain/knowledge"
	"github.com/bryanwahyu/drishti/internal/logging"
)

// ErrIngestRunning is returned when another ingestion holds the lock.
var ErrIngestRunning = errors.New("ingestion already running")

// Separators used by the splitter, coarsest first.
var Separators = []string{"\n## ", "\n### ", "\n#### ", "\n\n", "\n", ". ", " ", ""}

type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	LockPath     string
}

// IngestStats summarises one ingestion run.
type IngestStats struct {
	Documents int
	Chunks    int
	Duration  time.Duration
}

// Ingestor splits the corpus into chunks, embeds them and upserts them.
type Ingestor struct {
	source   knowledge.DocumentSource
	store    knowledge.VectorStore
	embedder knowledge.Embedder
	splitter textsplitter.RecursiveCharacter
	opts     IngestOptions
}

func NewIngestor(source knowledge.DocumentSource, store knowledge.VectorStore, embedder knowledge.Embedder, opts IngestOptions) *Ingestor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 3000
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 10
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	return &Ingestor{
		source:   source,
		store:    store,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.ChunkSize),
			textsplitter.WithChunkOverlap(opts.ChunkOverlap),
			textsplitter.WithSeparators(Separators),
		),
		opts: opts,
	}
}

// Run ingests every document once. Only one run per lock file at a time.
func (i *Ingestor) Run(ctx context.Context) (IngestStats, error) {
	start := time.Now()
	log := logging.WithContext(ctx)

	if i.opts.LockPath != "" {
		lock := flock.New(i.opts.LockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return IngestStats{}, fmt.Errorf("acquire ingest lock: %w", err)
		}
		if !ok {
			return IngestStats{}, ErrIngestRunning
		}
		defer lock.Unlock()
	}

	docs, err := i.source.Documents(ctx)
	if err != nil {
		return IngestStats{}, fmt.Errorf("list documents: %w", err)
	}

	var chunks []knowledge.Chunk
	for _, doc := range docs {
		parts, err := i.Split(doc)
		if err != nil {
			return IngestStats{}, err
		}
		log.Info("document split", "source", doc.Name, "chunks", len(parts))
		chunks = append(chunks, parts...)
	}

	for lo := 0; lo < len(chunks); lo += i.opts.BatchSize {
		hi := min(lo+i.opts.BatchSize, len(chunks))
		batch := chunks[lo:hi]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}
		vecs, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return IngestStats{}, fmt.Errorf("embed chunks %d-%d: %w", lo, hi, err)
		}
		if len(vecs) != len(batch) {
			return IngestStats{}, fmt.Errorf("embed chunks %d-%d: got %d vectors", lo, hi, len(vecs))
		}
		for j := range batch {
			batch[j].Embedding = vecs[j]
		}
		if err := i.store.Upsert(ctx, batch); err != nil {
			return IngestStats{}, fmt.Errorf("upsert chunks %d-%d: %w", lo, hi, err)
		}
	}

	stats := IngestStats{Documents: len(docs), Chunks: len(chunks), Duration: time.Since(start)}
	log.Info("ingestion finished", "documents", stats.Documents, "chunks", stats.Chunks, "duration_ms", stats.Duration.Milliseconds())
	return stats, nil
}

// Split cuts a document into chunks tagged with its source name.
func (i *Ingestor) Split(doc knowledge.Document) ([]knowledge.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}
	parts, err := i.splitter.SplitText(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", doc.Name, err)
	}
	chunks := make([]knowledge.Chunk, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, knowledge.Chunk{
			ID:      ChunkID(doc.Name, idx),
			Source:  doc.Name,
			Index:   idx,
			Content: p,
		})
	}
	return chunks, nil
}

// ChunkID is stable across runs so re-ingesting a document overwrites its chunks.
func ChunkID(source string, index int) string {
	sum := sha256.Sum256([]byte(source + "#" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:16])
}
