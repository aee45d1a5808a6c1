package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonbook-be/internal/dto"
	"commonbook-be/internal/extract"
	"commonbook-be/internal/index"
	"commonbook-be/internal/media"
	"commonbook-be/internal/pkg/logger"
	"commonbook-be/internal/progress"
	"commonbook-be/internal/render"
	"commonbook-be/internal/workspace"
	"commonbook-be/pkg/chunker"
	"commonbook-be/pkg/embedding"
	"commonbook-be/pkg/fusion"
	"commonbook-be/pkg/llm"
)

// echoProvider answers every prompt with its user text and records
// calls. Delta prompts are the exception: echoing them back verbatim
// would include the literal redundancy sentinel the engine embeds in
// the prompt, so those answer with a bulleted delta built from the
// NEW TEXT section instead, honoring the difference-engine contract.
type echoProvider struct {
	calls int64

	mu      sync.Mutex
	prompts []string
}

func (p *echoProvider) Chat(_ context.Context, _ []llm.Message, _ ...llm.Option) (string, error) {
	atomic.AddInt64(&p.calls, 1)
	return "ok", nil
}

func (p *echoProvider) Generate(_ context.Context, _, userPrompt string, _ ...llm.Option) (string, error) {
	atomic.AddInt64(&p.calls, 1)
	p.mu.Lock()
	p.prompts = append(p.prompts, userPrompt)
	p.mu.Unlock()
	if strings.HasPrefix(userPrompt, "KNOWN CONTEXT:") {
		const newMarker = "\n\nNEW TEXT:\n"
		const taskMarker = "\n\nTASK:"
		ni := strings.Index(userPrompt, newMarker)
		ti := strings.Index(userPrompt, taskMarker)
		if ni >= 0 && ti > ni {
			return "- " + strings.TrimSpace(userPrompt[ni+len(newMarker):ti]), nil
		}
	}
	return userPrompt, nil
}

func (p *echoProvider) firstPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[0]
}

// textAdapter returns canned text for any path.
type textAdapter struct{ text string }

func (a textAdapter) Extract(_ context.Context, _ string) (string, error) {
	return a.text, nil
}

// trackingStore wraps a progress store and remembers every write.
type trackingStore struct {
	progress.IStore
	mu      sync.Mutex
	history []progress.Record
}

func (s *trackingStore) Set(ctx context.Context, rec progress.Record) error {
	s.mu.Lock()
	s.history = append(s.history, rec)
	s.mu.Unlock()
	return s.IStore.Set(ctx, rec)
}

type testRig struct {
	orch     *Orchestrator
	ws       *workspace.Manager
	progress *trackingStore
	provider *echoProvider
	writer   *render.Writer
}

func newRig(t *testing.T, adapters map[dto.SourceType]extract.IAdapter) *testRig {
	t.Helper()
	log := logger.NopLogger{}
	ws := workspace.NewManager(t.TempDir(), log)
	prog := &trackingStore{IStore: progress.NewMemoryStore(time.Hour)}
	idx, err := index.NewChromemStore("", embedding.NewLocalProvider(0), log)
	require.NoError(t, err)

	registry := extract.NewRegistry()
	for st, adapter := range adapters {
		registry.Register(st, adapter)
	}

	provider := &echoProvider{}
	engine := fusion.NewEngine(provider, fusion.WithSleeper(func(context.Context, time.Duration) {}))
	writer := render.NewWriter(ws, log)
	downloader := media.NewDownloader("yt-dlp", log)

	orch := NewOrchestrator(ws, prog, idx, registry, downloader, engine, chunker.New(0, 0), writer, log)
	return &testRig{orch: orch, ws: ws, progress: prog, provider: provider, writer: writer}
}

func (r *testRig) upload(t *testing.T, sessionID uuid.UUID, name, content string) {
	t.Helper()
	_, _, err := r.ws.Save(sessionID, workspace.SubdirUploads, name, strings.NewReader(content))
	require.NoError(t, err)
}

func TestRunWithNoUploadsFailsFast(t *testing.T) {
	rig := newRig(t, nil)
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, rig.ws.Initialize(sessionID))

	err := rig.orch.Run(ctx, sessionID, dto.ModeFast)
	require.Error(t, err)

	rec, err := rig.progress.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, dto.StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.ErrorMessage)
	assert.Zero(t, atomic.LoadInt64(&rig.provider.calls), "no inference may run for an empty session")
}

func TestRunSingleDocumentCompletes(t *testing.T) {
	rig := newRig(t, map[dto.SourceType]extract.IAdapter{
		dto.SourcePDF: textAdapter{text: "--- Page 1 ---\nThe krebs cycle produces ATP through oxidation."},
	})
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, rig.ws.Initialize(sessionID))
	rig.upload(t, sessionID, "biology.pdf", "%PDF-stub")

	require.NoError(t, rig.orch.Run(ctx, sessionID, dto.ModeFast))

	rec, err := rig.progress.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, dto.StatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.Percentage)
	assert.NotEmpty(t, rec.ResultPath)

	manuscript, err := rig.writer.Read(sessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, manuscript)
}

func TestRunProgressIsMonotonic(t *testing.T) {
	rig := newRig(t, map[dto.SourceType]extract.IAdapter{
		dto.SourcePDF:   textAdapter{text: strings.Repeat("Cell biology fundamentals. ", 50)},
		dto.SourceAudio: textAdapter{text: "[00:01] The lecture covers the golgi apparatus."},
	})
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, rig.ws.Initialize(sessionID))
	rig.upload(t, sessionID, "handout.pdf", "%PDF-stub")
	rig.upload(t, sessionID, "lecture.mp3", "audio-bytes")

	require.NoError(t, rig.orch.Run(ctx, sessionID, dto.ModeDeep))

	var last int
	for i, rec := range rig.progress.history {
		assert.GreaterOrEqual(t, rec.Percentage, last, "write %d went backwards", i)
		last = rec.Percentage
	}
	statuses := make([]dto.IngestionStatus, 0, len(rig.progress.history))
	for _, rec := range rig.progress.history {
		statuses = append(statuses, rec.Status)
	}
	assert.Contains(t, statuses, dto.StatusTranscribing)
	assert.Contains(t, statuses, dto.StatusVectorizing)
	assert.Contains(t, statuses, dto.StatusSynthesizing)
	assert.Equal(t, dto.StatusCompleted, statuses[len(statuses)-1])
}

func TestRunSkipsAbsentPhases(t *testing.T) {
	rig := newRig(t, map[dto.SourceType]extract.IAdapter{
		dto.SourcePDF: textAdapter{text: "Only a document, no media at all."},
	})
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, rig.ws.Initialize(sessionID))
	rig.upload(t, sessionID, "solo.pdf", "%PDF-stub")

	require.NoError(t, rig.orch.Run(ctx, sessionID, dto.ModeFast))

	for _, rec := range rig.progress.history {
		assert.NotEqual(t, dto.StatusDownloading, rec.Status, "no youtube marker means no download phase")
		assert.NotEqual(t, dto.StatusTranscribing, rec.Status, "no media means no transcription phase")
	}
}

func TestRunAdapterFailureRecordsReason(t *testing.T) {
	rig := newRig(t, map[dto.SourceType]extract.IAdapter{
		dto.SourcePDF: failingAdapter{},
	})
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, rig.ws.Initialize(sessionID))
	rig.upload(t, sessionID, "broken.pdf", "%PDF-stub")

	err := rig.orch.Run(ctx, sessionID, dto.ModeFast)
	require.Error(t, err)

	rec, err := rig.progress.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, dto.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "broken.pdf")
}

type failingAdapter struct{}

func (failingAdapter) Extract(_ context.Context, path string) (string, error) {
	return "", fmt.Errorf("corrupt file: %s", filepath.Base(path))
}

func TestRunTranscriptAnchorsFusion(t *testing.T) {
	rig := newRig(t, map[dto.SourceType]extract.IAdapter{
		dto.SourcePDF:   textAdapter{text: strings.Repeat("The handout lists every krebs cycle intermediate. ", 30)},
		dto.SourceAudio: textAdapter{text: "[00:01] The lecture walks through glycolysis step by step."},
	})
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, rig.ws.Initialize(sessionID))
	rig.upload(t, sessionID, "handout.pdf", "%PDF-stub")
	rig.upload(t, sessionID, "lecture.mp3", "audio-bytes")

	require.NoError(t, rig.orch.Run(ctx, sessionID, dto.ModeFast))

	// The first inference call summarizes the base text, so it reveals
	// which source anchored the fusion. The transcript must win even
	// though the document is far larger.
	first := rig.provider.firstPrompt()
	assert.Contains(t, first, "glycolysis")
	assert.NotContains(t, first, "krebs")

	// The document still reaches the manuscript through the delta loop.
	manuscript, err := rig.writer.Read(sessionID)
	require.NoError(t, err)
	assert.Contains(t, manuscript, "glycolysis")
	assert.Contains(t, manuscript, "krebs")
}

func TestPickBasePrefersTranscript(t *testing.T) {
	doc := &source{sourceType: dto.SourcePDF, text: strings.Repeat("d", 500)}
	transcript := &source{sourceType: dto.SourceAudio, text: "[00:01] short talk"}

	assert.Same(t, transcript, pickBase([]*source{doc, transcript}))
	assert.Same(t, doc, pickBase([]*source{doc}), "documents anchor only without a transcript")
	assert.Nil(t, pickBase(nil))
}

func TestRunAfterBurnDoesNotResurrectState(t *testing.T) {
	rig := newRig(t, nil)
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, rig.ws.Initialize(sessionID))

	require.True(t, rig.ws.Destroy(sessionID))
	require.NoError(t, rig.progress.Flush(ctx, sessionID))

	err := rig.orch.Run(ctx, sessionID, dto.ModeFast)
	require.Error(t, err)

	rec, err := rig.progress.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, rec, "a burned session must stay erased")
}

func TestRunResolvesYoutubeMarkers(t *testing.T) {
	rig := newRig(t, map[dto.SourceType]extract.IAdapter{
		dto.SourceAudio: textAdapter{text: "[00:00] downloaded lecture transcript"},
	})
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, rig.ws.Initialize(sessionID))
	rig.upload(t, sessionID, "yt_abc"+YouTubeMarkerExt, "https://youtube.com/watch?v=abc")

	uploadsDir := rig.ws.SubdirPath(sessionID, workspace.SubdirUploads)
	// Replace the real yt-dlp invocation with a stub that drops the
	// expected mp3 in place.
	downloader := media.NewDownloader("yt-dlp", logger.NopLogger{})
	downloader.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return os.WriteFile(filepath.Join(uploadsDir, "yt_abc.mp3"), []byte("audio"), 0o644)
	})
	rig.orch.downloader = downloader

	require.NoError(t, rig.orch.Run(ctx, sessionID, dto.ModeFast))

	statuses := make([]dto.IngestionStatus, 0, len(rig.progress.history))
	for _, rec := range rig.progress.history {
		statuses = append(statuses, rec.Status)
	}
	assert.Contains(t, statuses, dto.StatusDownloading)
	assert.Contains(t, statuses, dto.StatusTranscribing)
	assert.Equal(t, dto.StatusCompleted, statuses[len(statuses)-1])
}

func TestRunPrefersYoutubeCaptions(t *testing.T) {
	// No audio adapter is registered: reaching the transcription leg
	// would fail the run, so completion proves the caption path.
	rig := newRig(t, nil)
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, rig.ws.Initialize(sessionID))
	rig.upload(t, sessionID, "yt_abc"+YouTubeMarkerExt, "https://youtube.com/watch?v=abc")

	processedDir := rig.ws.SubdirPath(sessionID, workspace.SubdirProcessed)
	vtt := "WEBVTT\n\n00:00:01.000 --> 00:00:04.000\nPhotosynthesis converts light into chemical energy.\n"
	downloader := media.NewDownloader("yt-dlp", logger.NopLogger{})
	downloader.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return os.WriteFile(filepath.Join(processedDir, "yt_abc.en.vtt"), []byte(vtt), 0o644)
	})
	rig.orch.downloader = downloader

	require.NoError(t, rig.orch.Run(ctx, sessionID, dto.ModeFast))

	first := rig.provider.firstPrompt()
	assert.Contains(t, first, "[00:01] Photosynthesis converts light into chemical energy.")

	for _, rec := range rig.progress.history {
		assert.NotEqual(t, dto.StatusTranscribing, rec.Status, "captions replace the transcription phase")
	}
}
