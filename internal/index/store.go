package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"commonbook-be/pkg/chunker"
)

// Hit is a scored chunk returned from a similarity query. Score is
// cosine similarity in [0, 1], higher is closer.
type Hit struct {
	ID    string
	Text  string
	Meta  chunker.Meta
	Score float64
}

// IStore is a session-scoped vector index. Every session owns an
// isolated collection that the burner can drop in one call.
type IStore interface {
	// Insert embeds and stores the chunks. An empty slice is a no-op.
	Insert(ctx context.Context, sessionID uuid.UUID, chunks []chunker.Chunk) error
	// Query returns the topK most similar chunks. A session with no
	// collection yields an empty result, not an error.
	Query(ctx context.Context, sessionID uuid.UUID, query string, topK int) ([]Hit, error)
	// Count reports how many chunks the session has indexed.
	Count(ctx context.Context, sessionID uuid.UUID) (int, error)
	// DeleteCollection drops the session's collection. Deleting a
	// collection that does not exist is not an error.
	DeleteCollection(ctx context.Context, sessionID uuid.UUID) error
}

// CollectionName derives the per-session collection identifier.
func CollectionName(sessionID uuid.UUID) string {
	return fmt.Sprintf("session_%s", sessionID)
}
