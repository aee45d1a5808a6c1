package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"commonbook-be/internal/dto"
	"commonbook-be/internal/extract"
	"commonbook-be/internal/index"
	"commonbook-be/internal/media"
	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/progress"
	"commonbook-be/internal/render"
	"commonbook-be/internal/workspace"
	"commonbook-be/pkg/chunker"
	"commonbook-be/pkg/fusion"
	"commonbook-be/pkg/llm"
)

// Progress checkpoints, written before each phase starts work.
const (
	pctQueued       = 5
	pctDownloading  = 10
	pctTranscribing = 25
	pctOCR          = 45
	pctVectorizing  = 60
	pctSynthesizing = 75
	pctCompleted    = 100
)

// YouTubeMarkerExt marks an uploads entry that holds a URL to fetch
// instead of file content.
const YouTubeMarkerExt = ".youtube"

// Orchestrator drives one session through the full ingestion state
// machine. Each phase records its status before doing any work so a
// crash mid-phase leaves an honest progress record behind.
type Orchestrator struct {
	workspace  *workspace.Manager
	progress   progress.IStore
	index      index.IStore
	registry   *extract.Registry
	downloader *media.Downloader
	fusion     *fusion.Engine
	chunker    *chunker.Chunker
	writer     *render.Writer
	log        logger.ILogger
}

func NewOrchestrator(
	ws *workspace.Manager,
	prog progress.IStore,
	idx index.IStore,
	registry *extract.Registry,
	downloader *media.Downloader,
	engine *fusion.Engine,
	ch *chunker.Chunker,
	writer *render.Writer,
	log logger.ILogger,
) *Orchestrator {
	return &Orchestrator{
		workspace:  ws,
		progress:   prog,
		index:      idx,
		registry:   registry,
		downloader: downloader,
		fusion:     engine,
		chunker:    ch,
		writer:     writer,
		log:        log,
	}
}

// source is one classified input flowing through the pipeline.
type source struct {
	path       string
	name       string
	sourceType dto.SourceType
	text       string
}

// Run executes the whole pipeline for a session. It never panics out:
// any failure, including a panic in an adapter, ends with a FAILED
// progress record carrying a reason.
func (o *Orchestrator) Run(ctx context.Context, sessionID uuid.UUID, mode dto.IntelligenceMode) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
			o.fail(ctx, sessionID, err.Error())
		}
	}()

	// A task redelivered after the burner ran must not resurrect any
	// session state, not even a failure record.
	if !o.workspace.Exists(sessionID) {
		return fmt.Errorf("session %s no longer exists", sessionID)
	}

	sources, err := o.collectSources(sessionID)
	if err != nil {
		o.fail(ctx, sessionID, err.Error())
		return err
	}
	if len(sources) == 0 {
		err = fmt.Errorf("no files uploaded to this session")
		o.fail(ctx, sessionID, err.Error())
		return err
	}

	if err = o.downloadPhase(ctx, sessionID, sources); err != nil {
		o.fail(ctx, sessionID, err.Error())
		return err
	}
	if err = o.transcribePhase(ctx, sessionID, sources); err != nil {
		o.fail(ctx, sessionID, err.Error())
		return err
	}
	if err = o.documentPhase(ctx, sessionID, sources); err != nil {
		o.fail(ctx, sessionID, err.Error())
		return err
	}

	chunks, err := o.vectorizePhase(ctx, sessionID, sources)
	if err != nil {
		o.fail(ctx, sessionID, err.Error())
		return err
	}

	resultPath, insightCount, err := o.synthesizePhase(ctx, sessionID, sources, chunks, mode)
	if err != nil {
		o.fail(ctx, sessionID, err.Error())
		return err
	}

	o.record(ctx, sessionID, dto.StatusCompleted, pctCompleted, "CommonBook ready", resultPath)
	o.log.Info("pipeline", "session completed", map[string]interface{}{
		"session_id": sessionID.String(),
		"sources":    len(sources),
		"chunks":     len(chunks),
		"insights":   insightCount,
	})
	return nil
}

// collectSources lists the uploads directory and classifies each entry.
func (o *Orchestrator) collectSources(sessionID uuid.UUID) ([]*source, error) {
	names, err := o.workspace.List(sessionID, workspace.SubdirUploads)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	sort.Strings(names)

	uploadsDir := o.workspace.SubdirPath(sessionID, workspace.SubdirUploads)
	var sources []*source
	for _, name := range names {
		path := filepath.Join(uploadsDir, name)
		if strings.HasSuffix(name, YouTubeMarkerExt) {
			sources = append(sources, &source{path: path, name: name, sourceType: dto.SourceYouTube})
			continue
		}
		t, err := extract.DetectSourceType(name)
		if err != nil {
			// Skip anything that slipped past upload validation.
			o.log.Warn("pipeline", "skipping unsupported upload", map[string]interface{}{
				"session_id": sessionID.String(),
				"filename":   name,
			})
			continue
		}
		sources = append(sources, &source{path: path, name: name, sourceType: t})
	}
	return sources, nil
}

// downloadPhase resolves youtube markers, into a caption transcript
// when the video has one and into a local audio file otherwise. The
// phase is skipped entirely when no marker exists.
func (o *Orchestrator) downloadPhase(ctx context.Context, sessionID uuid.UUID, sources []*source) error {
	var markers []*source
	for _, s := range sources {
		if s.sourceType == dto.SourceYouTube {
			markers = append(markers, s)
		}
	}
	if len(markers) == 0 {
		return nil
	}
	o.record(ctx, sessionID, dto.StatusDownloading, pctDownloading, "Fetching remote media", "")

	destDir := o.workspace.SubdirPath(sessionID, workspace.SubdirUploads)
	captionDir := o.workspace.SubdirPath(sessionID, workspace.SubdirProcessed)
	for _, s := range markers {
		raw, err := os.ReadFile(s.path)
		if err != nil {
			return fmt.Errorf("read youtube marker %s: %w", s.name, err)
		}
		url := strings.TrimSpace(string(raw))
		base := strings.TrimSuffix(s.name, YouTubeMarkerExt)

		// Published captions make the download and transcription legs
		// unnecessary; fall back to the audio path when there are none.
		if vttPath, capErr := o.downloader.FetchSubtitles(ctx, url, captionDir, base); capErr == nil {
			text, parseErr := extract.TranscriptFromVTT(vttPath)
			if parseErr == nil && text != "" {
				s.path = vttPath
				s.name = filepath.Base(vttPath)
				s.sourceType = dto.SourceAudio
				s.text = text
				continue
			}
			o.log.Warn("pipeline", "unusable captions, downloading audio", map[string]interface{}{
				"session_id": sessionID.String(),
				"marker":     s.name,
			})
		}

		audioPath, err := o.downloader.DownloadAudio(ctx, url, destDir, base)
		if err != nil {
			return err
		}
		// The marker now stands in for the downloaded audio.
		s.path = audioPath
		s.name = filepath.Base(audioPath)
		s.sourceType = dto.SourceAudio
	}
	return nil
}

// transcribePhase runs the media adapter over audio and video inputs.
func (o *Orchestrator) transcribePhase(ctx context.Context, sessionID uuid.UUID, sources []*source) error {
	var mediaSources []*source
	for _, s := range sources {
		if s.sourceType != dto.SourceAudio && s.sourceType != dto.SourceVideo {
			continue
		}
		if s.text != "" {
			continue // captions already covered this source
		}
		mediaSources = append(mediaSources, s)
	}
	if len(mediaSources) == 0 {
		return nil
	}
	o.record(ctx, sessionID, dto.StatusTranscribing, pctTranscribing, "Transcribing audio", "")

	for _, s := range mediaSources {
		adapter, err := o.registry.For(s.sourceType)
		if err != nil {
			return err
		}
		text, err := adapter.Extract(ctx, s.path)
		if err != nil {
			return fmt.Errorf("transcribe %s: %w", s.name, err)
		}
		s.text = text
	}
	return nil
}

// documentPhase extracts text from documents, slides and images.
func (o *Orchestrator) documentPhase(ctx context.Context, sessionID uuid.UUID, sources []*source) error {
	var docs []*source
	for _, s := range sources {
		switch s.sourceType {
		case dto.SourcePDF, dto.SourceDOCX, dto.SourcePPTX, dto.SourceImage:
			docs = append(docs, s)
		}
	}
	if len(docs) == 0 {
		return nil
	}
	o.record(ctx, sessionID, dto.StatusOCRProcessing, pctOCR, "Extracting text from documents", "")

	for _, s := range docs {
		adapter, err := o.registry.For(s.sourceType)
		if err != nil {
			return err
		}
		text, err := adapter.Extract(ctx, s.path)
		if err != nil {
			return fmt.Errorf("extract %s: %w", s.name, err)
		}
		s.text = text
	}
	return nil
}

// vectorizePhase chunks every non-image source and indexes the chunks.
func (o *Orchestrator) vectorizePhase(ctx context.Context, sessionID uuid.UUID, sources []*source) ([]chunker.Chunk, error) {
	o.record(ctx, sessionID, dto.StatusVectorizing, pctVectorizing, "Indexing content", "")

	var all []chunker.Chunk
	for i, s := range sources {
		if s.sourceType == dto.SourceImage || strings.TrimSpace(s.text) == "" {
			continue
		}
		meta := chunker.Meta{
			SourceID:   fmt.Sprintf("src%d", i),
			SourceName: s.name,
			SourceType: extract.ChunkSourceType(s.sourceType),
		}
		all = append(all, o.chunker.Split(s.text, meta)...)
	}
	if err := o.index.Insert(ctx, sessionID, all); err != nil {
		return nil, err
	}
	return all, nil
}

// synthesizePhase runs the fusion engine and writes the artifact.
// The transcript is the chronological backbone of the session, so it
// anchors the fusion as the base text; documents and slides feed the
// deduplication loop. A document anchors only when no media produced
// a transcript at all.
func (o *Orchestrator) synthesizePhase(ctx context.Context, sessionID uuid.UUID, sources []*source, chunks []chunker.Chunk, mode dto.IntelligenceMode) (string, int, error) {
	o.record(ctx, sessionID, dto.StatusSynthesizing, pctSynthesizing, "Synthesizing CommonBook", "")

	base := pickBase(sources)

	var baseText string
	var secondary []string
	var images []string
	for _, s := range sources {
		if s.sourceType == dto.SourceImage {
			if s.text != "" {
				images = append(images, s.text)
			}
			continue
		}
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		if s == base {
			baseText = s.text
			continue
		}
		meta := chunker.Meta{SourceID: s.name, SourceName: s.name, SourceType: extract.ChunkSourceType(s.sourceType)}
		for _, c := range o.chunker.Split(s.text, meta) {
			secondary = append(secondary, c.Text)
		}
	}

	manuscript, err := o.fusion.GenerateCommonBook(ctx, sessionID.String(), fusion.Input{
		BaseText:          baseText,
		SecondaryChunks:   secondary,
		ImageDescriptions: images,
		Mode:              llm.Mode(mode),
	})
	if err != nil {
		return "", 0, err
	}

	insightCount := strings.Count(manuscript, "## Key Points")
	resultPath, err := o.writer.Write(sessionID, manuscript, render.Metrics{
		SourceCount:  len(sources),
		ChunkCount:   len(chunks),
		InsightCount: insightCount,
	})
	if err != nil {
		return "", 0, err
	}
	return resultPath, insightCount, nil
}

// pickBase chooses the fusion anchor: the largest transcript, then the
// largest document when the session has no transcribed media.
func pickBase(sources []*source) *source {
	var base *source
	for _, s := range sources {
		if s.sourceType != dto.SourceAudio && s.sourceType != dto.SourceVideo {
			continue
		}
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		if base == nil || len(s.text) > len(base.text) {
			base = s
		}
	}
	if base != nil {
		return base
	}
	for _, s := range sources {
		switch s.sourceType {
		case dto.SourcePDF, dto.SourceDOCX, dto.SourcePPTX:
		default:
			continue
		}
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		if base == nil || len(s.text) > len(base.text) {
			base = s
		}
	}
	return base
}

func (o *Orchestrator) record(ctx context.Context, sessionID uuid.UUID, status dto.IngestionStatus, pct int, step, resultPath string) {
	if !o.workspace.Exists(sessionID) {
		o.log.Warn("pipeline", "dropping progress write for destroyed session", map[string]interface{}{
			"session_id": sessionID.String(),
			"status":     string(status),
		})
		return
	}
	err := o.progress.Set(ctx, progress.Record{
		SessionID:   sessionID,
		Status:      status,
		Percentage:  pct,
		CurrentStep: step,
		ResultPath:  resultPath,
	})
	if err != nil {
		o.log.Error("pipeline", "failed to record progress", map[string]interface{}{
			"session_id": sessionID.String(),
			"status":     string(status),
			"error":      err.Error(),
		})
	}
}

func (o *Orchestrator) fail(ctx context.Context, sessionID uuid.UUID, reason string) {
	if !o.workspace.Exists(sessionID) {
		o.log.Warn("pipeline", "dropping failure record for destroyed session", map[string]interface{}{
			"session_id": sessionID.String(),
			"reason":     reason,
		})
		return
	}
	current, _ := o.progress.Get(ctx, sessionID)
	pct := pctQueued
	if current != nil {
		pct = current.Percentage
	}
	err := o.progress.Set(ctx, progress.Record{
		SessionID:    sessionID,
		Status:       dto.StatusFailed,
		Percentage:   pct,
		CurrentStep:  "Pipeline stopped",
		ErrorMessage: reason,
	})
	if err != nil {
		o.log.Error("pipeline", "failed to record failure", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}
	o.log.Error("pipeline", "session failed", map[string]interface{}{
		"session_id": sessionID.String(),
		"reason":     reason,
	})
}
