package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"commonbook-be/internal/pkg/logger"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.ILogger
}

// NewRedisStore backs the progress store with Redis so multiple API
// replicas can poll state written by a separate worker process.
func NewRedisStore(client *redis.Client, ttl time.Duration, log logger.ILogger) IStore {
	return &redisStore{client: client, ttl: ttl, log: log}
}

func progressKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:progress", sessionID)
}

func sessionPattern(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:*", sessionID)
}

func (s *redisStore) Set(ctx context.Context, rec Record) error {
	rec.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress record: %w", err)
	}
	if err := s.client.Set(ctx, progressKey(rec.SessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("write progress record: %w", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, sessionID uuid.UUID) (*Record, error) {
	raw, err := s.client.Get(ctx, progressKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read progress record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode progress record: %w", err)
	}
	return &rec, nil
}

func (s *redisStore) Flush(ctx context.Context, sessionID uuid.UUID) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionPattern(sessionID), 100).Result()
		if err != nil {
			return fmt.Errorf("scan session keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete session keys: %w", err)
			}
			s.log.Info("progress", "flushed session keys", map[string]interface{}{
				"session_id": sessionID.String(),
				"count":      len(keys),
			})
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *redisStore) Touch(ctx context.Context, sessionID uuid.UUID) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionPattern(sessionID), 100).Result()
		if err != nil {
			return fmt.Errorf("scan session keys: %w", err)
		}
		for _, key := range keys {
			if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
				return fmt.Errorf("refresh ttl for %s: %w", key, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
