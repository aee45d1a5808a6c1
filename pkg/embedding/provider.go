package embedding

// EmbeddingResponseEmbedding carries the raw vector values.
type EmbeddingResponseEmbedding struct {
	Values []float32 `json:"values"`
}

type EmbeddingResponse struct {
	Embedding EmbeddingResponseEmbedding `json:"embedding"`
}

// Provider defines the interface for generating text embeddings.
// taskType hints the downstream use ("retrieval_document" / "retrieval_query");
// providers that do not distinguish may ignore it.
type Provider interface {
	Generate(text string, taskType string) (*EmbeddingResponse, error)
}
