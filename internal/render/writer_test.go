package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/workspace"
)

func newWriter(t *testing.T) (*Writer, *workspace.Manager) {
	t.Helper()
	ws := workspace.NewManager(t.TempDir(), logger.NopLogger{})
	return NewWriter(ws, logger.NopLogger{}), ws
}

func TestWriteProducesAllArtifacts(t *testing.T) {
	w, ws := newWriter(t)
	sessionID := uuid.New()
	require.NoError(t, ws.Initialize(sessionID))

	manuscript := "# Introduction\n\nUnified study notes.\n\n# Document Insights & Key Points\n\n- one insight\n"
	path, err := w.Write(sessionID, manuscript, Metrics{SourceCount: 2, ChunkCount: 14, InsightCount: 1})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("artifacts", ManuscriptFile), path)

	artifactDir := ws.SubdirPath(sessionID, workspace.SubdirArtifacts)
	html, err := os.ReadFile(filepath.Join(artifactDir, HTMLFile))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Introduction</h1>")

	metrics, err := w.ReadMetrics(sessionID)
	require.NoError(t, err)
	require.NotNil(t, metrics)
	assert.Equal(t, sessionID, metrics.SessionID)
	assert.Equal(t, 2, metrics.SourceCount)
	assert.Equal(t, len(manuscript), metrics.ManuscriptSize)
	assert.False(t, metrics.GeneratedAt.IsZero())
}

func TestWriteRejectsEmptyManuscript(t *testing.T) {
	w, ws := newWriter(t)
	sessionID := uuid.New()
	require.NoError(t, ws.Initialize(sessionID))

	_, err := w.Write(sessionID, "   \n", Metrics{})
	assert.ErrorContains(t, err, "empty manuscript")
}

func TestReadRoundTrip(t *testing.T) {
	w, ws := newWriter(t)
	sessionID := uuid.New()
	require.NoError(t, ws.Initialize(sessionID))

	manuscript := "# Notes\n\ncontent"
	_, err := w.Write(sessionID, manuscript, Metrics{})
	require.NoError(t, err)

	got, err := w.Read(sessionID)
	require.NoError(t, err)
	assert.Equal(t, manuscript, got)
}

func TestReadAfterBurnReportsGone(t *testing.T) {
	w, ws := newWriter(t)
	sessionID := uuid.New()
	require.NoError(t, ws.Initialize(sessionID))

	_, err := w.Write(sessionID, "# Notes\n\ncontent", Metrics{})
	require.NoError(t, err)
	require.True(t, ws.Destroy(sessionID))

	_, err = w.Read(sessionID)
	assert.ErrorIs(t, err, ErrArtifactGone)

	metrics, err := w.ReadMetrics(sessionID)
	require.NoError(t, err)
	assert.Nil(t, metrics)
}
