package knowledge

import (
	"context"
	"strings"

	"github.com/bryanwahyu/drishti/internal/domain/audit"
	"github.com/bryanwahyu/drishti/internal/domain/knowledge"
)

// Retriever adapts a vector store to the audit Retriever port.
type Retriever struct {
	store knowledge.VectorStore
}

func NewRetriever(store knowledge.VectorStore) *Retriever {
	return &Retriever{store: store}
}

// Search returns the page contents of the k closest passages. A blank query
// never reaches the store.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]string, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return []string{}, nil
	}
	passages, err := r.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, audit.NewError(audit.ErrRetrieval, "retrieve", err)
	}
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		out = append(out, p.PageContent)
	}
	return out, nil
}
