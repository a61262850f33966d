package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/azureaisearch"

	"github.com/bryanwahyu/drishti/internal/domain/knowledge"
)

// the default index created by azureaisearch.CreateIndex
const defaultDimensions = 1536

type Options struct {
	Endpoint   string
	APIKey     string
	IndexName  string
	Dimensions int
}

// Store adapts the langchaingo Azure AI Search vector store to
// knowledge.VectorStore. Chunk metadata (source, chunk id, index) travels in
// the document's metadata field.
type Store struct {
	opts  Options
	index azureaisearch.Store
}

// NewStore builds the store. The azureaisearch client reads its endpoint
// and key from the environment, so configured values are exported there.
func NewStore(opts Options, embedder knowledge.Embedder, httpClient *http.Client) (*Store, error) {
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	if opts.Dimensions == 0 {
		opts.Dimensions = defaultDimensions
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Endpoint != "" {
		if err := os.Setenv(azureaisearch.EnvironmentVariableEndpoint, opts.Endpoint); err != nil {
			return nil, err
		}
	}
	if opts.APIKey != "" {
		if err := os.Setenv(azureaisearch.EnvironmentVariableAPIKey, opts.APIKey); err != nil {
			return nil, err
		}
	}

	index, err := azureaisearch.New(
		azureaisearch.WithEmbedder(Embedder{embedder}),
		azureaisearch.WithAPIKey(opts.APIKey),
		azureaisearch.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("azure search: %w", err)
	}
	return &Store{opts: opts, index: index}, nil
}

func (s *Store) SimilaritySearch(ctx context.Context, text string, k int) ([]knowledge.Passage, error) {
	docs, err := s.index.SimilaritySearch(ctx, text, k, vectorstores.WithNameSpace(s.opts.IndexName))
	if err != nil {
		return nil, fmt.Errorf("azure search: %w", err)
	}
	passages := make([]knowledge.Passage, 0, len(docs))
	for _, d := range docs {
		source, _ := d.Metadata["source"].(string)
		passages = append(passages, knowledge.Passage{
			PageContent: d.PageContent,
			Source:      source,
			Distance:    1 - float64(d.Score),
		})
	}
	return passages, nil
}

// Upsert uploads each chunk under its own id, so re-ingesting a corpus
// replaces documents instead of duplicating them.
func (s *Store) Upsert(ctx context.Context, chunks []knowledge.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("azure search: chunk %s has no embedding", c.ID)
		}
		meta := map[string]any{"source": c.Source, "chunk_index": c.Index}
		if err := s.index.UploadDocument(ctx, c.ID, s.opts.IndexName, c.Content, c.Embedding, meta); err != nil {
			return fmt.Errorf("azure search: index document %s: %w", c.ID, err)
		}
	}
	return nil
}

// EnsureIndex creates the index with the library's default layout when it
// does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context) error {
	if s.opts.Dimensions != defaultDimensions {
		return fmt.Errorf("azure search: default index holds %d-dimensional vectors, configured %d", defaultDimensions, s.opts.Dimensions)
	}
	if err := s.Ping(ctx); err == nil {
		return nil
	}
	if err := s.index.CreateIndex(ctx, s.opts.IndexName); err != nil {
		return fmt.Errorf("azure search: create index %s: %w", s.opts.IndexName, err)
	}
	return nil
}

// Ping checks that the index exists.
func (s *Store) Ping(ctx context.Context) error {
	var out map[string]any
	if err := s.index.RetrieveIndex(ctx, s.opts.IndexName, &out); err != nil {
		return fmt.Errorf("azure search: retrieve index %s: %w", s.opts.IndexName, err)
	}
	return nil
}

// Embedder exposes a knowledge.Embedder as a langchaingo embeddings.Embedder.
type Embedder struct {
	knowledge.Embedder
}

func (e Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.Embed(ctx, texts)
}

func (e Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, errors.New("embed query: expected one vector")
	}
	return vecs[0], nil
}
