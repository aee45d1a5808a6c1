package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"commonbook-be/internal/dto"
	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/progress"
	"commonbook-be/internal/render"
)

type IStatusService interface {
	GetProgress(ctx context.Context, sessionID uuid.UUID) (*dto.PipelineProgressResponse, error)
}

type IArtifactService interface {
	// GetCommonBook returns the manuscript and its metrics.
	GetCommonBook(ctx context.Context, sessionID uuid.UUID) (string, *render.Metrics, error)
}

type statusService struct {
	progress progress.IStore
	log      logger.ILogger
}

func NewStatusService(prog progress.IStore, log logger.ILogger) IStatusService {
	return &statusService{progress: prog, log: log}
}

func (s *statusService) GetProgress(ctx context.Context, sessionID uuid.UUID) (*dto.PipelineProgressResponse, error) {
	rec, err := s.progress.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read session progress: %w", err)
	}
	if rec == nil {
		return nil, ErrSessionNotFound
	}
	return &dto.PipelineProgressResponse{
		SessionID:          rec.SessionID,
		Status:             rec.Status,
		ProgressPercentage: rec.Percentage,
		CurrentStep:        rec.CurrentStep,
		ErrorMessage:       rec.ErrorMessage,
		ResultURL:          rec.ResultPath,
	}, nil
}

type artifactService struct {
	progress progress.IStore
	writer   *render.Writer
	log      logger.ILogger
}

func NewArtifactService(prog progress.IStore, writer *render.Writer, log logger.ILogger) IArtifactService {
	return &artifactService{progress: prog, writer: writer, log: log}
}

func (s *artifactService) GetCommonBook(ctx context.Context, sessionID uuid.UUID) (string, *render.Metrics, error) {
	rec, err := s.progress.Get(ctx, sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("read session progress: %w", err)
	}
	if rec == nil {
		return "", nil, ErrSessionNotFound
	}
	if rec.Status != dto.StatusCompleted {
		return "", nil, fmt.Errorf("synthesis not completed, current status: %s", rec.Status)
	}

	manuscript, err := s.writer.Read(sessionID)
	if err != nil {
		return "", nil, err
	}
	metrics, err := s.writer.ReadMetrics(sessionID)
	if err != nil {
		return "", nil, err
	}
	return manuscript, metrics, nil
}
