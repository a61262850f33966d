package azure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/drishti/internal/domain/knowledge"
)

type fixedEmbedder []float32

func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f
	}
	return out, nil
}

// fakeSearch records requests by path and answers like the search service.
type fakeSearch struct {
	mu       sync.Mutex
	requests []string
	uploads  []map[string]any
	indexes  map[string]bool
	status   int
}

func (f *fakeSearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
		return
	}
	switch {
	case strings.HasSuffix(r.URL.Path, "/docs/search"):
		_, _ = w.Write([]byte(`{"value":[
			{"@search.score":0.9,"id":"a","content":"IPC 153A","metadata":"{\"source\":\"ipc.pdf\"}"},
			{"@search.score":0.7,"id":"b","content":"IPC 295A","metadata":"{\"source\":\"ipc.pdf\"}"}
		]}`))
	case strings.HasSuffix(r.URL.Path, "/docs/index"):
		var body struct {
			Value []map[string]any `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.uploads = append(f.uploads, body.Value...)
		_, _ = w.Write([]byte(`{"value":[{"key":"x","status":true,"statusCode":201}]}`))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/indexes"):
		name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/indexes"), "/('\")")
		if !f.indexes[name] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"index not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"` + name + `"}`))
	default:
		var def map[string]any
		_ = json.NewDecoder(r.Body).Decode(&def)
		if name, ok := def["name"].(string); ok {
			f.indexes[name] = true
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}
}

func newTestStore(t *testing.T, f *fakeSearch, emb knowledge.Embedder) *Store {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	t.Setenv("AZURE_AI_SEARCH_ENDPOINT", "")
	t.Setenv("AZURE_AI_SEARCH_API_KEY", "")

	s, err := NewStore(Options{Endpoint: srv.URL + "/", APIKey: "key", IndexName: "rules"}, emb, srv.Client())
	require.NoError(t, err)
	return s
}

func TestSimilaritySearch(t *testing.T) {
	f := &fakeSearch{indexes: map[string]bool{}}
	s := newTestStore(t, f, fixedEmbedder{0.5, 0.5})

	got, err := s.SimilaritySearch(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "IPC 153A", got[0].PageContent)
	assert.Equal(t, "ipc.pdf", got[0].Source)
	assert.InDelta(t, 0.1, got[0].Distance, 1e-6)
	assert.Less(t, got[0].Distance, got[1].Distance)
	require.Len(t, f.requests, 1)
	assert.Contains(t, f.requests[0], "rules")
	assert.Contains(t, f.requests[0], "/docs/search")
}

func TestSimilaritySearchHTTPError(t *testing.T) {
	f := &fakeSearch{indexes: map[string]bool{}, status: http.StatusForbidden}
	s := newTestStore(t, f, fixedEmbedder{1})

	_, err := s.SimilaritySearch(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "azure search")
}

func TestUpsertKeepsChunkIDs(t *testing.T) {
	f := &fakeSearch{indexes: map[string]bool{}}
	s := newTestStore(t, f, fixedEmbedder{1})

	err := s.Upsert(context.Background(), []knowledge.Chunk{
		{ID: "c1", Source: "ipc.pdf", Index: 0, Content: "first", Embedding: []float32{1, 0}},
		{ID: "c2", Source: "ipc.pdf", Index: 1, Content: "second", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	require.Len(t, f.uploads, 2)
	assert.Equal(t, "c1", f.uploads[0]["id"])
	assert.Equal(t, "second", f.uploads[1]["content"])
	meta, err := json.Marshal(f.uploads[0]["metadata"])
	require.NoError(t, err)
	assert.Contains(t, string(meta), "ipc.pdf")
}

func TestUpsertRejectsMissingEmbedding(t *testing.T) {
	f := &fakeSearch{indexes: map[string]bool{}}
	s := newTestStore(t, f, fixedEmbedder{1})

	err := s.Upsert(context.Background(), []knowledge.Chunk{{ID: "c1", Content: "x"}})
	assert.ErrorContains(t, err, "no embedding")
	assert.Empty(t, f.requests)
}

func TestEnsureIndexCreatesOnce(t *testing.T) {
	f := &fakeSearch{indexes: map[string]bool{}}
	s := newTestStore(t, f, fixedEmbedder{1})
	ctx := context.Background()

	assert.Error(t, s.Ping(ctx))
	require.NoError(t, s.EnsureIndex(ctx))
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.EnsureIndex(ctx))

	var creates int
	for _, r := range f.requests {
		if !strings.HasPrefix(r, "GET ") {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
}

func TestEnsureIndexRejectsOtherDimensions(t *testing.T) {
	f := &fakeSearch{indexes: map[string]bool{}}
	s := newTestStore(t, f, fixedEmbedder{1})
	s.opts.Dimensions = 3072

	assert.ErrorContains(t, s.EnsureIndex(context.Background()), "3072")
}

func TestEmbedderAdapter(t *testing.T) {
	e := Embedder{fixedEmbedder{2}}
	q, err := e.EmbedQuery(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, q)

	docs, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
