package progress

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonbook-be/internal/dto"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	sessionID := uuid.New()

	rec, err := store.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, rec, "unknown session should have no record")

	err = store.Set(ctx, Record{
		SessionID:   sessionID,
		Status:      dto.StatusVectorizing,
		Percentage:  60,
		CurrentStep: "Indexing document chunks",
	})
	require.NoError(t, err)

	rec, err = store.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, dto.StatusVectorizing, rec.Status)
	assert.Equal(t, 60, rec.Percentage)
	assert.Equal(t, "Indexing document chunks", rec.CurrentStep)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestMemoryStoreOverwriteKeepsLatest(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	sessionID := uuid.New()

	steps := []Record{
		{SessionID: sessionID, Status: dto.StatusQueued, Percentage: 5, CurrentStep: "Task queued"},
		{SessionID: sessionID, Status: dto.StatusDownloading, Percentage: 10, CurrentStep: "Fetching media"},
		{SessionID: sessionID, Status: dto.StatusCompleted, Percentage: 100, CurrentStep: "Done", ResultPath: "artifacts/commonbook.md"},
	}
	for _, step := range steps {
		require.NoError(t, store.Set(ctx, step))
	}

	rec, err := store.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, dto.StatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.Percentage)
	assert.Equal(t, "artifacts/commonbook.md", rec.ResultPath)
}

func TestMemoryStoreFlush(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	sessionID := uuid.New()
	other := uuid.New()

	require.NoError(t, store.Set(ctx, Record{SessionID: sessionID, Status: dto.StatusQueued, Percentage: 5}))
	require.NoError(t, store.Set(ctx, Record{SessionID: other, Status: dto.StatusQueued, Percentage: 5}))

	require.NoError(t, store.Flush(ctx, sessionID))

	rec, err := store.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, rec, "flushed session should read as absent")

	rec, err = store.Get(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, rec, "other sessions are untouched by a flush")

	// Flushing an already-flushed session is a no-op.
	require.NoError(t, store.Flush(ctx, sessionID))
}

func TestMemoryStoreFailureRecord(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	sessionID := uuid.New()

	require.NoError(t, store.Set(ctx, Record{
		SessionID:    sessionID,
		Status:       dto.StatusFailed,
		Percentage:   45,
		CurrentStep:  "Extracting text",
		ErrorMessage: "no readable content found in uploaded files",
	}))

	rec, err := store.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, dto.StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.ErrorMessage, "failed records must carry a reason")
}
