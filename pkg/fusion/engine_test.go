package fusion

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"commonbook-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider simulates the difference-engine contract: the summary
// leg echoes its input, and the delta leg answers the sentinel whenever
// the new text already appears in the known context.
type scriptedProvider struct {
	calls int64
}

func (s *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	atomic.AddInt64(&s.calls, 1)
	return "ok", nil
}

func (s *scriptedProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, opts ...llm.Option) (string, error) {
	atomic.AddInt64(&s.calls, 1)

	switch systemPrompt {
	case summarySystemPrompt:
		return userPrompt, nil
	case deduplicationSystemPrompt:
		known, newText := parseDeltaPrompt(userPrompt)
		if strings.Contains(known, strings.TrimSpace(newText)) {
			return emptyDeltaSentinel, nil
		}
		return "- " + strings.TrimSpace(newText), nil
	case introSystemPrompt:
		return "# Common Book — Unified Study Guide\nIntro.", nil
	case baseSectionSystemPrompt:
		return "## Base\n" + userPrompt, nil
	case conclusionSystemPrompt:
		return "# Conclusion\nDone.", nil
	}
	return "", nil
}

func parseDeltaPrompt(prompt string) (known, newText string) {
	const knownMarker = "KNOWN CONTEXT:\n"
	const newMarker = "\n\nNEW TEXT:\n"
	const taskMarker = "\n\nTASK:"

	ki := strings.Index(prompt, knownMarker)
	ni := strings.Index(prompt, newMarker)
	ti := strings.Index(prompt, taskMarker)
	if ki < 0 || ni < 0 || ti < 0 {
		return "", ""
	}
	return prompt[ki+len(knownMarker) : ni], prompt[ni+len(newMarker) : ti]
}

func noSleep(ctx context.Context, d time.Duration) {}

func newTestEngine(p llm.Provider) *Engine {
	return NewEngine(p, WithSleeper(noSleep))
}

func TestRedundantChunkYieldsEmptyDelta(t *testing.T) {
	provider := &scriptedProvider{}
	engine := newTestEngine(provider)

	base := "Photosynthesis converts light energy into chemical energy."

	manuscript, err := engine.GenerateCommonBook(context.Background(), "s1", Input{
		BaseText:        base,
		SecondaryChunks: []string{base}, // byte-identical to base content
		Mode:            llm.ModeFast,
	})

	require.NoError(t, err)
	assert.NotContains(t, manuscript, "Document Insights",
		"a fully redundant chunk must not produce an insights section")
}

func TestNovelChunkYieldsDelta(t *testing.T) {
	provider := &scriptedProvider{}
	engine := newTestEngine(provider)

	fact := "The Calvin cycle fixes carbon dioxide into G3P molecules."

	manuscript, err := engine.GenerateCommonBook(context.Background(), "s1", Input{
		BaseText:        "Photosynthesis converts light energy into chemical energy.",
		SecondaryChunks: []string{fact},
		Mode:            llm.ModeFast,
	})

	require.NoError(t, err)
	assert.Contains(t, manuscript, "Document Insights")
	assert.Contains(t, manuscript, fact)
}

func TestFailsFastWithNoContent(t *testing.T) {
	provider := &scriptedProvider{}
	engine := newTestEngine(provider)

	_, err := engine.GenerateCommonBook(context.Background(), "s1", Input{Mode: llm.ModeFast})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to synthesize")
	assert.EqualValues(t, 0, atomic.LoadInt64(&provider.calls),
		"no inference calls may happen when there is no content")
}

func TestDegradedBaseFallback(t *testing.T) {
	provider := &scriptedProvider{}
	engine := newTestEngine(provider)

	chunks := []string{
		"Chapter one covers thermodynamics.",
		"Chapter two covers entropy.",
		"Chapter three covers enthalpy.",
		"Chapter four covers free energy and spontaneity.",
	}

	manuscript, err := engine.GenerateCommonBook(context.Background(), "s1", Input{
		SecondaryChunks: chunks,
		Mode:            llm.ModeFast,
	})

	require.NoError(t, err)
	// The first chunks become the substitute base and show up in the
	// rewritten primary section.
	assert.Contains(t, manuscript, "thermodynamics")
	// The remaining chunk is treated as secondary material.
	assert.Contains(t, manuscript, "free energy")
}

func TestVisualDescriptionsBypassDeltaStep(t *testing.T) {
	provider := &scriptedProvider{}
	engine := newTestEngine(provider)

	desc := "[VISUAL DATA DESCRIPTION]: A bar chart of reaction rates."

	manuscript, err := engine.GenerateCommonBook(context.Background(), "s1", Input{
		BaseText:          "Reaction kinetics lecture transcript.",
		ImageDescriptions: []string{desc},
		Mode:              llm.ModeFast,
	})

	require.NoError(t, err)
	assert.Contains(t, manuscript, "Visual Analysis")
	assert.Contains(t, manuscript, desc)
}

func TestShortDeltasDiscarded(t *testing.T) {
	provider := &scriptedProvider{}
	engine := newTestEngine(provider)

	// The scripted provider returns "- ok" (5 chars), below the minimum
	// insight length, so it must be discarded.
	manuscript, err := engine.GenerateCommonBook(context.Background(), "s1", Input{
		BaseText:        "A long base transcript about biology.",
		SecondaryChunks: []string{"ok"},
		Mode:            llm.ModeFast,
	})

	require.NoError(t, err)
	assert.NotContains(t, manuscript, "Document Insights")
}
