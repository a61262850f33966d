package knowledge

// Document is a source file of the legal-rules corpus.
type Document struct {
	Name    string
	Content string
}

// Chunk is a slice of a document stored in the vector index.
type Chunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Index     int       `json:"chunk_index"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}

// Passage is a search hit.
type Passage struct {
	PageContent string  `json:"page_content"`
	Source      string  `json:"source,omitempty"`
	Distance    float64 `json:"distance"`
}
