package embedding

import (
	"hash/fnv"
)

// LocalProvider generates deterministic pseudo-embeddings from a text hash.
// It has no semantic quality and exists so the pipeline can run end-to-end
// without any external embedding service (development and tests).
type LocalProvider struct {
	Dimensions int
}

func NewLocalProvider(dimensions int) Provider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &LocalProvider{Dimensions: dimensions}
}

func (p *LocalProvider) Generate(text string, taskType string) (*EmbeddingResponse, error) {
	values := make([]float32, p.Dimensions)

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	// Simple xorshift expansion of the hash into a stable vector.
	state := seed
	for i := range values {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		values[i] = float32(int64(state%2000)-1000) / 1000.0
	}

	return &EmbeddingResponse{
		Embedding: EmbeddingResponseEmbedding{
			Values: NormalizeVector(values),
		},
	}, nil
}
