package knowledge

import "context"

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore port. SimilaritySearch returns at most k passages ordered by
// ascending distance; an empty index yields an empty slice.
type VectorStore interface {
	SimilaritySearch(ctx context.Context, text string, k int) ([]Passage, error)
	Upsert(ctx context.Context, chunks []Chunk) error
}

// DocumentSource lists the corpus to ingest.
type DocumentSource interface {
	Documents(ctx context.Context) ([]Document, error)
}
