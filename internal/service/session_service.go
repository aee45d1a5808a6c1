package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"commonbook-be/internal/dispatch"
	"commonbook-be/internal/dto"
	"commonbook-be/internal/index"
	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/progress"
	"commonbook-be/internal/workspace"
)

type ISessionService interface {
	Start(ctx context.Context) (*dto.SessionResponse, error)
	Revoke(ctx context.Context, sessionID uuid.UUID) (*dto.RevokeResponse, error)
	// Burn erases every trace of the session: workspace files, vector
	// collection and progress keys. Each deletion is attempted even if
	// an earlier one fails.
	Burn(ctx context.Context, sessionID uuid.UUID) error
	// SweepExpired burns every session older than the TTL.
	SweepExpired(ctx context.Context) (int, error)
}

type sessionService struct {
	workspace  *workspace.Manager
	progress   progress.IStore
	index      index.IStore
	dispatcher dispatch.IDispatcher
	ttl        time.Duration
	log        logger.ILogger
}

func NewSessionService(
	ws *workspace.Manager,
	prog progress.IStore,
	idx index.IStore,
	dispatcher dispatch.IDispatcher,
	ttl time.Duration,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		workspace:  ws,
		progress:   prog,
		index:      idx,
		dispatcher: dispatcher,
		ttl:        ttl,
		log:        log,
	}
}

func (s *sessionService) Start(ctx context.Context) (*dto.SessionResponse, error) {
	sessionID := uuid.New()
	if err := s.workspace.Initialize(sessionID); err != nil {
		return nil, fmt.Errorf("initialize session workspace: %w", err)
	}

	now := time.Now().UTC()
	err := s.progress.Set(ctx, progress.Record{
		SessionID:   sessionID,
		Status:      dto.StatusQueued,
		Percentage:  0,
		CurrentStep: "Session opened",
	})
	if err != nil {
		// Roll the workspace back so a half-started session leaves nothing.
		s.workspace.Destroy(sessionID)
		return nil, fmt.Errorf("seed session progress: %w", err)
	}

	s.log.Info("session", "session started", map[string]interface{}{
		"session_id": sessionID.String(),
	})
	return &dto.SessionResponse{
		SessionID: sessionID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}

func (s *sessionService) Revoke(ctx context.Context, sessionID uuid.UUID) (*dto.RevokeResponse, error) {
	err := s.dispatcher.Dispatch(ctx, dispatch.Task{
		SessionID:  sessionID,
		Type:       dispatch.TaskPurge,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		// The queue being down must not keep user data alive.
		s.log.Warn("session", "purge dispatch failed, burning inline", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
		if burnErr := s.Burn(ctx, sessionID); burnErr != nil {
			return nil, burnErr
		}
	}
	return &dto.RevokeResponse{SessionID: sessionID, Revoked: true}, nil
}

func (s *sessionService) Burn(ctx context.Context, sessionID uuid.UUID) error {
	var failures []error

	if ok := s.workspace.Destroy(sessionID); !ok {
		failures = append(failures, fmt.Errorf("workspace removal incomplete"))
	}
	if err := s.index.DeleteCollection(ctx, sessionID); err != nil {
		failures = append(failures, fmt.Errorf("index removal: %w", err))
	}
	if err := s.progress.Flush(ctx, sessionID); err != nil {
		failures = append(failures, fmt.Errorf("progress flush: %w", err))
	}

	if len(failures) > 0 {
		for _, f := range failures {
			s.log.Critical("session", "burner left data behind", map[string]interface{}{
				"session_id": sessionID.String(),
				"error":      f.Error(),
			})
		}
		return fmt.Errorf("burner incomplete for session %s: %d of 3 stores failed", sessionID, len(failures))
	}

	s.log.Info("session", "session burned", map[string]interface{}{
		"session_id": sessionID.String(),
	})
	return nil
}

func (s *sessionService) SweepExpired(ctx context.Context) (int, error) {
	dirs, err := s.workspace.ListAll()
	if err != nil {
		return 0, fmt.Errorf("list session trees: %w", err)
	}

	cutoff := time.Now().Add(-s.ttl)
	swept := 0
	for _, dir := range dirs {
		if dir.ModTime.After(cutoff) {
			continue
		}
		if err := s.Burn(ctx, dir.ID); err != nil {
			s.log.Error("session", "sweep failed for expired session", map[string]interface{}{
				"session_id": dir.ID.String(),
				"error":      err.Error(),
			})
			continue
		}
		swept++
	}
	if swept > 0 {
		s.log.Info("session", "expired sessions swept", map[string]interface{}{
			"count": swept,
		})
	}
	return swept, nil
}
