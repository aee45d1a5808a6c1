package index

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"commonbook-be/internal/pkg/logger"
	"commonbook-be/pkg/chunker"
	"commonbook-be/pkg/embedding"
)

type chromemStore struct {
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc
	log       logger.ILogger
}

// NewChromemStore builds an embedded, in-process vector store. With an
// empty persistDir the index lives purely in memory and vanishes with
// the process, which matches the ephemeral session model.
func NewChromemStore(persistDir string, provider embedding.Provider, log logger.ILogger) (IStore, error) {
	var db *chromem.DB
	var err error
	if persistDir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(persistDir, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	return &chromemStore{
		db:        db,
		embedFunc: embeddingFunc(provider),
		log:       log,
	}, nil
}

// embeddingFunc adapts an embedding provider to chromem's callback shape.
func embeddingFunc(provider embedding.Provider) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		resp, err := provider.Generate(text, "retrieval_document")
		if err != nil {
			return nil, err
		}
		return resp.Embedding.Values, nil
	}
}

func (s *chromemStore) Insert(ctx context.Context, sessionID uuid.UUID, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	collection, err := s.db.GetOrCreateCollection(CollectionName(sessionID), nil, s.embedFunc)
	if err != nil {
		return fmt.Errorf("get collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:       c.ID,
			Content:  c.Text,
			Metadata: metaToMap(c.Meta),
		})
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	s.log.Info("index", "indexed chunks", map[string]interface{}{
		"session_id": sessionID.String(),
		"count":      len(docs),
	})
	return nil
}

func (s *chromemStore) Query(ctx context.Context, sessionID uuid.UUID, query string, topK int) ([]Hit, error) {
	collection := s.db.GetCollection(CollectionName(sessionID), s.embedFunc)
	if collection == nil {
		return []Hit{}, nil
	}
	count := collection.Count()
	if count == 0 {
		return []Hit{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:    r.ID,
			Text:  r.Content,
			Meta:  metaFromMap(r.Metadata),
			Score: float64(r.Similarity),
		})
	}
	return hits, nil
}

func (s *chromemStore) Count(_ context.Context, sessionID uuid.UUID) (int, error) {
	collection := s.db.GetCollection(CollectionName(sessionID), s.embedFunc)
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

func (s *chromemStore) DeleteCollection(_ context.Context, sessionID uuid.UUID) error {
	name := CollectionName(sessionID)
	if s.db.GetCollection(name, s.embedFunc) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

func metaToMap(m chunker.Meta) map[string]string {
	out := map[string]string{
		"source_id":   m.SourceID,
		"source_name": m.SourceName,
		"source_type": string(m.SourceType),
		"sequence":    strconv.Itoa(m.Sequence),
	}
	if m.Page != nil {
		out["page"] = strconv.Itoa(*m.Page)
	}
	if m.StartSec != nil {
		out["start_sec"] = strconv.FormatFloat(*m.StartSec, 'f', -1, 64)
	}
	if m.EndSec != nil {
		out["end_sec"] = strconv.FormatFloat(*m.EndSec, 'f', -1, 64)
	}
	return out
}

func metaFromMap(raw map[string]string) chunker.Meta {
	meta := chunker.Meta{
		SourceID:   raw["source_id"],
		SourceName: raw["source_name"],
		SourceType: chunker.SourceType(raw["source_type"]),
	}
	if v, err := strconv.Atoi(raw["sequence"]); err == nil {
		meta.Sequence = v
	}
	if v, ok := raw["page"]; ok {
		if page, err := strconv.Atoi(v); err == nil {
			meta.Page = &page
		}
	}
	if v, ok := raw["start_sec"]; ok {
		if sec, err := strconv.ParseFloat(v, 64); err == nil {
			meta.StartSec = &sec
		}
	}
	if v, ok := raw["end_sec"]; ok {
		if sec, err := strconv.ParseFloat(v, 64); err == nil {
			meta.EndSec = &sec
		}
	}
	return meta
}
