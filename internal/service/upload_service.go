package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"commonbook-be/internal/dto"
	"commonbook-be/internal/extract"
	"commonbook-be/internal/pipeline"
	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/progress"
	"commonbook-be/internal/workspace"
)

var ErrSessionNotFound = fmt.Errorf("session does not exist")

type IUploadService interface {
	UploadFile(ctx context.Context, sessionID uuid.UUID, filename string, r io.Reader) (*dto.FileUploadResponse, error)
	IngestYoutube(ctx context.Context, sessionID uuid.UUID, rawURL string) (*dto.FileUploadResponse, error)
}

type uploadService struct {
	workspace *workspace.Manager
	progress  progress.IStore
	log       logger.ILogger
}

func NewUploadService(ws *workspace.Manager, prog progress.IStore, log logger.ILogger) IUploadService {
	return &uploadService{workspace: ws, progress: prog, log: log}
}

func (s *uploadService) UploadFile(ctx context.Context, sessionID uuid.UUID, filename string, r io.Reader) (*dto.FileUploadResponse, error) {
	if !s.workspace.Exists(sessionID) {
		return nil, ErrSessionNotFound
	}
	sourceType, err := extract.DetectSourceType(filename)
	if err != nil {
		return nil, err
	}

	_, size, err := s.workspace.Save(sessionID, workspace.SubdirUploads, filename, r)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	// Activity keeps the session alive for another full TTL window.
	if err := s.progress.Touch(ctx, sessionID); err != nil {
		s.log.Warn("upload", "failed to refresh session ttl", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}

	s.log.Info("upload", "file stored", map[string]interface{}{
		"session_id":  sessionID.String(),
		"filename":    filename,
		"size_bytes":  size,
		"source_type": string(sourceType),
	})
	return &dto.FileUploadResponse{
		FileID:     filename,
		Filename:   filename,
		FileSizeMB: float64(size) / (1024 * 1024),
		SourceType: sourceType,
	}, nil
}

func (s *uploadService) IngestYoutube(ctx context.Context, sessionID uuid.UUID, rawURL string) (*dto.FileUploadResponse, error) {
	if !s.workspace.Exists(sessionID) {
		return nil, ErrSessionNotFound
	}
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid youtube url")
	}
	host := strings.TrimPrefix(parsed.Host, "www.")
	if host != "youtube.com" && host != "youtu.be" && host != "m.youtube.com" {
		return nil, fmt.Errorf("unsupported media host: %s", parsed.Host)
	}

	// The marker records the URL; the worker fetches the audio during
	// the download phase.
	name := fmt.Sprintf("yt_%s%s", uuid.NewString()[:8], pipeline.YouTubeMarkerExt)
	_, _, err = s.workspace.Save(sessionID, workspace.SubdirUploads, name, strings.NewReader(parsed.String()))
	if err != nil {
		return nil, fmt.Errorf("store youtube marker: %w", err)
	}
	if err := s.progress.Touch(ctx, sessionID); err != nil {
		s.log.Warn("upload", "failed to refresh session ttl", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}

	s.log.Info("upload", "youtube source registered", map[string]interface{}{
		"session_id": sessionID.String(),
		"url":        parsed.String(),
	})
	return &dto.FileUploadResponse{
		FileID:     name,
		Filename:   parsed.String(),
		SourceType: dto.SourceYouTube,
	}, nil
}
