package index

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"commonbook-be/internal/pkg/logger"
	"commonbook-be/pkg/chunker"
	"commonbook-be/pkg/embedding"
)

// VectorDims is the fixed width of the embedding column. The vector()
// type in the SessionChunk tag must agree with it.
const VectorDims = 768

// SessionChunk is the pgvector-backed row for one indexed chunk.
type SessionChunk struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID       `gorm:"type:uuid;not null;index"`
	ChunkId   string          `gorm:"type:varchar(128);not null"`
	Document  string          `gorm:"type:text"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"`
	Metadata  datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (SessionChunk) TableName() string {
	return "session_chunks"
}

type pgvectorStore struct {
	db       *gorm.DB
	provider embedding.Provider
	log      logger.ILogger
}

// NewPgvectorStore backs the index with Postgres so sessions survive a
// worker restart. Isolation is by session_id rather than a physical
// collection; the burner deletes by session_id. The provider is checked
// once so a dimension mismatch with the vector column fails at startup
// instead of on the first insert.
func NewPgvectorStore(db *gorm.DB, provider embedding.Provider, log logger.ILogger) (IStore, error) {
	resp, err := provider.Generate("dimension check", "retrieval_document")
	if err != nil {
		return nil, fmt.Errorf("check embedding provider: %w", err)
	}
	if got := len(resp.Embedding.Values); got != VectorDims {
		return nil, fmt.Errorf("embedding provider produces %d dimensions, column expects %d", got, VectorDims)
	}
	return &pgvectorStore{db: db, provider: provider, log: log}, nil
}

func (s *pgvectorStore) Insert(ctx context.Context, sessionID uuid.UUID, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]*SessionChunk, 0, len(chunks))
	for _, c := range chunks {
		resp, err := s.provider.Generate(c.Text, "retrieval_document")
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		meta, err := json.Marshal(c.Meta)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		rows = append(rows, &SessionChunk{
			SessionId: sessionID,
			ChunkId:   c.ID,
			Document:  c.Text,
			Embedding: pgvector.NewVector(resp.Embedding.Values),
			Metadata:  meta,
		})
	}
	if err := s.db.WithContext(ctx).Create(rows).Error; err != nil {
		return fmt.Errorf("insert session chunks: %w", err)
	}
	s.log.Info("index", "indexed chunks", map[string]interface{}{
		"session_id": sessionID.String(),
		"count":      len(rows),
	})
	return nil
}

func (s *pgvectorStore) Query(ctx context.Context, sessionID uuid.UUID, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	resp, err := s.provider.Generate(query, "retrieval_query")
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	queryVector := pgvector.NewVector(resp.Embedding.Values)

	// Cosine distance in pgvector is 1 - cosine_similarity, so the
	// similarity score is 1 - (embedding <=> query).
	type result struct {
		SessionChunk
		Similarity float64
	}
	var results []result
	err = s.db.WithContext(ctx).
		Table("session_chunks").
		Select("session_chunks.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("session_id = ?", sessionID).
		Order("similarity DESC").
		Limit(topK).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("query session chunks: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		var meta chunker.Meta
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		hits = append(hits, Hit{
			ID:    r.ChunkId,
			Text:  r.Document,
			Meta:  meta,
			Score: r.Similarity,
		})
	}
	return hits, nil
}

func (s *pgvectorStore) Count(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&SessionChunk{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count session chunks: %w", err)
	}
	return int(count), nil
}

func (s *pgvectorStore) DeleteCollection(ctx context.Context, sessionID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&SessionChunk{}).Error
	if err != nil {
		return fmt.Errorf("delete session chunks: %w", err)
	}
	return nil
}
