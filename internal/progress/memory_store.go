package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
)

type memoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemoryStore keeps progress in process memory. Suitable for
// single-binary deployments and tests where Redis is not available.
func NewMemoryStore(ttl time.Duration) IStore {
	return &memoryStore{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *memoryStore) Set(_ context.Context, rec Record) error {
	rec.UpdatedAt = time.Now().UTC()
	s.cache.Set(progressKey(rec.SessionID), rec, s.ttl)
	return nil
}

func (s *memoryStore) Get(_ context.Context, sessionID uuid.UUID) (*Record, error) {
	raw, found := s.cache.Get(progressKey(sessionID))
	if !found {
		return nil, nil
	}
	rec := raw.(Record)
	return &rec, nil
}

func (s *memoryStore) Flush(_ context.Context, sessionID uuid.UUID) error {
	s.cache.Delete(progressKey(sessionID))
	return nil
}

func (s *memoryStore) Touch(ctx context.Context, sessionID uuid.UUID) error {
	rec, err := s.Get(ctx, sessionID)
	if err != nil || rec == nil {
		return err
	}
	s.cache.Set(progressKey(sessionID), *rec, s.ttl)
	return nil
}
