package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"commonbook-be/internal/dispatch"
	"commonbook-be/internal/dto"
	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/progress"
	"commonbook-be/internal/workspace"
)

type ISynthesisService interface {
	// Trigger validates the session has content and queues the run.
	Trigger(ctx context.Context, sessionID uuid.UUID, mode dto.IntelligenceMode) error
}

type synthesisService struct {
	workspace  *workspace.Manager
	progress   progress.IStore
	dispatcher dispatch.IDispatcher
	log        logger.ILogger
}

func NewSynthesisService(
	ws *workspace.Manager,
	prog progress.IStore,
	dispatcher dispatch.IDispatcher,
	log logger.ILogger,
) ISynthesisService {
	return &synthesisService{
		workspace:  ws,
		progress:   prog,
		dispatcher: dispatcher,
		log:        log,
	}
}

func (s *synthesisService) Trigger(ctx context.Context, sessionID uuid.UUID, mode dto.IntelligenceMode) error {
	if !s.workspace.Exists(sessionID) {
		return ErrSessionNotFound
	}
	uploads, err := s.workspace.List(sessionID, workspace.SubdirUploads)
	if err != nil {
		return fmt.Errorf("list uploads: %w", err)
	}
	if len(uploads) == 0 {
		return fmt.Errorf("no files uploaded to this session")
	}
	if mode != dto.ModeFast && mode != dto.ModeDeep {
		mode = dto.ModeFast
	}

	// Reject double triggers while a run is active.
	rec, err := s.progress.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read session progress: %w", err)
	}
	if rec != nil {
		switch rec.Status {
		case dto.StatusQueued, dto.StatusDownloading, dto.StatusTranscribing,
			dto.StatusOCRProcessing, dto.StatusVectorizing, dto.StatusSynthesizing:
			if rec.Percentage > 0 {
				return fmt.Errorf("synthesis already in progress")
			}
		}
	}

	err = s.progress.Set(ctx, progress.Record{
		SessionID:   sessionID,
		Status:      dto.StatusQueued,
		Percentage:  5,
		CurrentStep: "Task queued",
	})
	if err != nil {
		return fmt.Errorf("seed queued progress: %w", err)
	}

	err = s.dispatcher.Dispatch(ctx, dispatch.Task{
		SessionID:  sessionID,
		Type:       dispatch.TaskSynthesis,
		Mode:       mode,
		EnqueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("dispatch synthesis task: %w", err)
	}

	s.log.Info("synthesis", "run queued", map[string]interface{}{
		"session_id": sessionID.String(),
		"mode":       string(mode),
		"uploads":    len(uploads),
	})
	return nil
}
