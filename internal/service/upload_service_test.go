package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonbook-be/internal/dto"
	"commonbook-be/internal/pipeline"
	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/progress"
	"commonbook-be/internal/workspace"
)

func newUploadFixture(t *testing.T) (IUploadService, *workspace.Manager, uuid.UUID) {
	t.Helper()
	ws := workspace.NewManager(t.TempDir(), logger.NopLogger{})
	prog := progress.NewMemoryStore(time.Hour)
	sessionID := uuid.New()
	require.NoError(t, ws.Initialize(sessionID))
	return NewUploadService(ws, prog, logger.NopLogger{}), ws, sessionID
}

func TestUploadFileStoresAndClassifies(t *testing.T) {
	svc, ws, sessionID := newUploadFixture(t)

	resp, err := svc.UploadFile(context.Background(), sessionID, "slides.pptx", strings.NewReader("PK-stub"))
	require.NoError(t, err)
	assert.Equal(t, dto.SourcePPTX, resp.SourceType)
	assert.Equal(t, "slides.pptx", resp.Filename)
	assert.Greater(t, resp.FileSizeMB, 0.0)

	names, err := ws.List(sessionID, workspace.SubdirUploads)
	require.NoError(t, err)
	assert.Equal(t, []string{"slides.pptx"}, names)
}

func TestUploadFileRejectsUnknownType(t *testing.T) {
	svc, _, sessionID := newUploadFixture(t)

	_, err := svc.UploadFile(context.Background(), sessionID, "malware.exe", strings.NewReader("MZ"))
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestUploadFileUnknownSession(t *testing.T) {
	svc, _, _ := newUploadFixture(t)

	_, err := svc.UploadFile(context.Background(), uuid.New(), "notes.pdf", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestIngestYoutubeWritesMarker(t *testing.T) {
	svc, ws, sessionID := newUploadFixture(t)

	resp, err := svc.IngestYoutube(context.Background(), sessionID, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, dto.SourceYouTube, resp.SourceType)
	assert.True(t, strings.HasSuffix(resp.FileID, pipeline.YouTubeMarkerExt))

	names, err := ws.List(sessionID, workspace.SubdirUploads)
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestIngestYoutubeRejectsOtherHosts(t *testing.T) {
	svc, _, sessionID := newUploadFixture(t)

	_, err := svc.IngestYoutube(context.Background(), sessionID, "https://example.com/watch?v=abc")
	assert.ErrorContains(t, err, "unsupported media host")

	_, err = svc.IngestYoutube(context.Background(), sessionID, "not a url at all")
	assert.ErrorContains(t, err, "invalid youtube url")
}

func TestTriggerRequiresUploads(t *testing.T) {
	ws := workspace.NewManager(t.TempDir(), logger.NopLogger{})
	prog := progress.NewMemoryStore(time.Hour)
	dispatcher := &fakeDispatcher{}
	svc := NewSynthesisService(ws, prog, dispatcher, logger.NopLogger{})
	ctx := context.Background()

	sessionID := uuid.New()
	require.NoError(t, ws.Initialize(sessionID))

	err := svc.Trigger(ctx, sessionID, dto.ModeFast)
	assert.ErrorContains(t, err, "no files uploaded")
	assert.Empty(t, dispatcher.tasks)
}

func TestTriggerQueuesTaskAndSeedsProgress(t *testing.T) {
	ws := workspace.NewManager(t.TempDir(), logger.NopLogger{})
	prog := progress.NewMemoryStore(time.Hour)
	dispatcher := &fakeDispatcher{}
	svc := NewSynthesisService(ws, prog, dispatcher, logger.NopLogger{})
	ctx := context.Background()

	sessionID := uuid.New()
	require.NoError(t, ws.Initialize(sessionID))
	_, _, err := ws.Save(sessionID, workspace.SubdirUploads, "notes.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	require.NoError(t, svc.Trigger(ctx, sessionID, dto.ModeDeep))

	require.Len(t, dispatcher.tasks, 1)
	assert.Equal(t, dto.ModeDeep, dispatcher.tasks[0].Mode)

	rec, err := prog.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, dto.StatusQueued, rec.Status)
	assert.Equal(t, 5, rec.Percentage)

	// A second trigger while the first run is queued is rejected.
	err = svc.Trigger(ctx, sessionID, dto.ModeFast)
	assert.ErrorContains(t, err, "already in progress")
}
