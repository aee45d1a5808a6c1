package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/workspace"
)

const (
	ManuscriptFile = "commonbook.md"
	HTMLFile       = "commonbook.html"
	MetricsFile    = "metrics.json"
)

// Metrics is written next to the artifact for the result endpoint.
type Metrics struct {
	SessionID      uuid.UUID `json:"session_id"`
	SourceCount    int       `json:"source_count"`
	ChunkCount     int       `json:"chunk_count"`
	InsightCount   int       `json:"insight_count"`
	ManuscriptSize int       `json:"manuscript_bytes"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Writer persists the synthesized manuscript into the session's
// artifacts directory, both as markdown and rendered HTML.
type Writer struct {
	workspace *workspace.Manager
	markdown  goldmark.Markdown
	log       logger.ILogger
}

func NewWriter(ws *workspace.Manager, log logger.ILogger) *Writer {
	return &Writer{
		workspace: ws,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
		),
		log: log,
	}
}

// Write stores the manuscript and its metrics, returning the
// workspace-relative path of the markdown artifact.
func (w *Writer) Write(sessionID uuid.UUID, manuscript string, metrics Metrics) (string, error) {
	if strings.TrimSpace(manuscript) == "" {
		return "", fmt.Errorf("empty manuscript for session %s", sessionID)
	}

	if _, _, err := w.workspace.Save(sessionID, workspace.SubdirArtifacts, ManuscriptFile, strings.NewReader(manuscript)); err != nil {
		return "", fmt.Errorf("write manuscript: %w", err)
	}

	var htmlBuf bytes.Buffer
	if err := w.markdown.Convert([]byte(manuscript), &htmlBuf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	if _, _, err := w.workspace.Save(sessionID, workspace.SubdirArtifacts, HTMLFile, &htmlBuf); err != nil {
		return "", fmt.Errorf("write html artifact: %w", err)
	}

	metrics.SessionID = sessionID
	metrics.ManuscriptSize = len(manuscript)
	metrics.GeneratedAt = time.Now().UTC()
	payload, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	if _, _, err := w.workspace.Save(sessionID, workspace.SubdirArtifacts, MetricsFile, bytes.NewReader(payload)); err != nil {
		return "", fmt.Errorf("write metrics: %w", err)
	}

	w.log.Info("render", "artifact written", map[string]interface{}{
		"session_id": sessionID.String(),
		"bytes":      len(manuscript),
	})
	return filepath.Join(workspace.SubdirArtifacts, ManuscriptFile), nil
}

// Read returns the manuscript for a completed session. A missing
// artifact is reported distinctly so the API can answer 410-style
// when the burner has already run.
func (w *Writer) Read(sessionID uuid.UUID) (string, error) {
	path := filepath.Join(w.workspace.SubdirPath(sessionID, workspace.SubdirArtifacts), ManuscriptFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrArtifactGone
		}
		return "", fmt.Errorf("read manuscript: %w", err)
	}
	return string(data), nil
}

// ReadMetrics loads the metrics record, or nil when absent.
func (w *Writer) ReadMetrics(sessionID uuid.UUID) (*Metrics, error) {
	path := filepath.Join(w.workspace.SubdirPath(sessionID, workspace.SubdirArtifacts), MetricsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return &m, nil
}

// ErrArtifactGone marks a manuscript that no longer exists on disk.
var ErrArtifactGone = fmt.Errorf("artifact no longer available")
