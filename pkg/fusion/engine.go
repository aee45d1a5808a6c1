package fusion

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"commonbook-be/pkg/llm"
)

// Engine implements the smart deduplication synthesis: one base source
// (the chronological narrative, typically a transcript) is merged with
// secondary sources (documents, slides) by extracting only the
// information the base does not already cover, then assembling a single
// manuscript with minimal extra inference calls.
//
// The inter-call delay and the sequential chunk loop exist to stay under
// an external tokens-per-minute ceiling; do not parallelize the delta
// loop without a global limiter.
type Engine struct {
	llm llm.Provider

	interCallDelay time.Duration
	summaryDelay   time.Duration

	// sleep is swappable so tests do not wait out real delays.
	sleep func(ctx context.Context, d time.Duration)
}

const (
	// Inputs to the delta comparison are trimmed so both sides fit in a
	// small prompt budget.
	maxDeltaContextChars = 2000
	maxDeltaChunkChars   = 2000

	// The raw base is capped before summarization; beyond this the
	// summary quality no longer improves but the cost does.
	maxSummaryInputChars = 25000

	maxIntroContextChars      = 1500
	maxBaseRewriteChars       = 3500
	maxConclusionContextChars = 500

	// Deltas shorter than this are noise, not insights.
	minDeltaLength = 10

	// How many leading secondary chunks substitute for a missing base.
	// This is a documented heuristic, not a quality guarantee.
	degradedBaseChunks = 3
)

// Input carries everything the engine fuses for one session.
type Input struct {
	BaseText          string
	SecondaryChunks   []string
	ImageDescriptions []string
	Mode              llm.Mode
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelays overrides the pacing between inference calls.
func WithDelays(interCall, afterSummary time.Duration) Option {
	return func(e *Engine) {
		e.interCallDelay = interCall
		e.summaryDelay = afterSummary
	}
}

// WithSleeper replaces the delay implementation (tests).
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

func NewEngine(provider llm.Provider, opts ...Option) *Engine {
	e := &Engine{
		llm:            provider,
		interCallDelay: 4 * time.Second,
		summaryDelay:   3 * time.Second,
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateCommonBook orchestrates the full fusion and returns the
// manuscript text. It fails fast, before any inference call, when there
// is nothing at all to synthesize.
func (e *Engine) GenerateCommonBook(ctx context.Context, sessionID string, input Input) (string, error) {
	baseText := strings.TrimSpace(input.BaseText)
	secondary := input.SecondaryChunks
	images := input.ImageDescriptions

	if baseText == "" && len(secondary) == 0 && len(images) == 0 {
		return "", fmt.Errorf("nothing to synthesize: no transcript, documents, or visual descriptions")
	}

	// Degraded-base fallback: without a transcript, promote the leading
	// secondary chunks into a substitute base so the rest of the
	// algorithm has an anchor to compare against.
	if baseText == "" && len(secondary) > 0 {
		n := degradedBaseChunks
		if n > len(secondary) {
			n = len(secondary)
		}
		baseText = strings.Join(secondary[:n], "\n\n")
		secondary = secondary[n:]
		log.Printf("[%s] No base source; synthesized substitute base from %d secondary chunks", sessionID, n)
	}

	log.Printf("[%s] Starting fusion. Base: %d chars, secondary chunks: %d, images: %d",
		sessionID, len(baseText), len(secondary), len(images))

	// Step 1+2: a dense summary of the base anchors every delta
	// comparison, bounding cost to one small context per chunk.
	baseSummary, err := e.summarize(ctx, baseText, input.Mode)
	if err != nil {
		return "", fmt.Errorf("base summary failed: %w", err)
	}
	log.Printf("[%s] Base summary generated (%d chars)", sessionID, len(baseSummary))

	e.sleep(ctx, e.summaryDelay)

	// Step 3: sequential delta analysis against the summary.
	var insights []string
	for i, chunk := range secondary {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		delta := e.extractUniqueDelta(ctx, chunk, baseSummary, input.Mode)
		if len(strings.TrimSpace(delta)) > minDeltaLength {
			insights = append(insights, delta)
			log.Printf("[%s] Delta %d/%d: unique content (%d chars)", sessionID, i+1, len(secondary), len(delta))
		} else {
			log.Printf("[%s] Delta %d/%d: redundant, skipped", sessionID, i+1, len(secondary))
		}

		e.sleep(ctx, e.interCallDelay)
	}
	log.Printf("[%s] Delta analysis complete: %d unique insights from %d chunks", sessionID, len(insights), len(secondary))

	// Step 4+5: assemble with minimal further inference.
	manuscript, err := e.assemble(ctx, sessionID, baseText, insights, images, input.Mode)
	if err != nil {
		return "", err
	}

	log.Printf("[%s] Final manuscript: %d chars", sessionID, len(manuscript))
	return manuscript, nil
}

func (e *Engine) summarize(ctx context.Context, text string, mode llm.Mode) (string, error) {
	if len(text) > maxSummaryInputChars {
		text = text[:maxSummaryInputChars]
	}
	return e.llm.Generate(ctx, summarySystemPrompt, text,
		llm.WithMode(mode),
		llm.WithTemperature(0.3), // lower temp for factual summaries
		llm.WithMaxTokens(4096),
	)
}

// extractUniqueDelta performs the semantic set difference
// chunk \ knownContext. A fully redundant chunk yields "".
func (e *Engine) extractUniqueDelta(ctx context.Context, chunk, knownContext string, mode llm.Mode) string {
	trimmedContext := knownContext
	if len(trimmedContext) > maxDeltaContextChars {
		trimmedContext = trimmedContext[:maxDeltaContextChars]
	}
	trimmedChunk := chunk
	if len(trimmedChunk) > maxDeltaChunkChars {
		trimmedChunk = trimmedChunk[:maxDeltaChunkChars]
	}

	prompt := fmt.Sprintf(
		"KNOWN CONTEXT:\n%s\n\nNEW TEXT:\n%s\n\n"+
			"TASK: List ALL unique information from 'NEW TEXT' not in 'KNOWN CONTEXT'. "+
			"Include: facts, definitions, formulas, descriptions, technical details, names, processes. "+
			"Return as a bulleted list. If fully redundant, return '%s'.",
		trimmedContext, trimmedChunk, emptyDeltaSentinel,
	)

	response, err := e.llm.Generate(ctx, deduplicationSystemPrompt, prompt,
		llm.WithMode(mode),
		llm.WithTemperature(0.1),
		llm.WithMaxTokens(1500),
	)
	if err != nil {
		// A failed comparison degrades to "nothing new" rather than
		// aborting the whole synthesis.
		log.Printf("[WARN] Delta analysis failed for chunk: %v", err)
		return ""
	}

	if strings.Contains(response, emptyDeltaSentinel) {
		return ""
	}
	return response
}

// assemble composes the final document. Only the intro, base rewrite and
// conclusion invoke the model; insights and visuals are concatenated
// directly so already-extracted content is never re-submitted.
func (e *Engine) assemble(ctx context.Context, sessionID, baseText string, insights, images []string, mode llm.Mode) (string, error) {
	introContext := baseText
	if len(introContext) > maxIntroContextChars {
		introContext = introContext[:maxIntroContextChars]
	}
	introPrompt := fmt.Sprintf(
		"Based on this content summary, write a brief 3-4 sentence introduction for a study guide:\n%s\n\n"+
			"Start with '# Common Book — Unified Study Guide' as the title.",
		introContext,
	)
	intro, err := e.llm.Generate(ctx, introSystemPrompt, introPrompt,
		llm.WithMode(mode), llm.WithMaxTokens(500))
	if err != nil {
		return "", fmt.Errorf("introduction generation failed: %w", err)
	}

	e.sleep(ctx, e.interCallDelay)

	rewriteInput := baseText
	if len(rewriteInput) > maxBaseRewriteChars {
		rewriteInput = rewriteInput[:maxBaseRewriteChars]
	}
	basePrompt := "Rewrite the following transcript into a clean, well-organized study section. " +
		"Use ## headers for subtopics. Preserve all key information and timestamps.\n\n" + rewriteInput
	baseSection, err := e.llm.Generate(ctx, baseSectionSystemPrompt, basePrompt,
		llm.WithMode(mode), llm.WithMaxTokens(2000))
	if err != nil {
		return "", fmt.Errorf("base section generation failed: %w", err)
	}

	e.sleep(ctx, e.interCallDelay)

	var insightsSection string
	if len(insights) > 0 {
		var b strings.Builder
		b.WriteString("\n\n# Document Insights & Key Points\n\n")
		b.WriteString("The following unique insights were extracted from the uploaded documents:\n\n")
		for i, insight := range insights {
			fmt.Fprintf(&b, "## Key Points — Set %d\n\n%s\n\n", i+1, insight)
		}
		insightsSection = b.String()
	}

	var imageSection string
	if len(images) > 0 {
		var b strings.Builder
		b.WriteString("\n\n# Visual Analysis\n\n")
		b.WriteString("The following visual data was extracted from uploaded images and diagrams:\n\n")
		for _, desc := range images {
			b.WriteString(desc)
			b.WriteString("\n\n")
		}
		imageSection = b.String()
	}

	conclusionContext := baseText
	if len(conclusionContext) > maxConclusionContextChars {
		conclusionContext = conclusionContext[:maxConclusionContextChars]
	}
	conclusionPrompt := fmt.Sprintf(
		"Write a brief 2-3 sentence conclusion for a study guide that covered these topics:\n"+
			"- Base content: %s\n- %d sets of document insights\n- %d image analyses\n"+
			"Start with '# Conclusion'",
		conclusionContext, len(insights), len(images),
	)
	conclusion, err := e.llm.Generate(ctx, conclusionSystemPrompt, conclusionPrompt,
		llm.WithMode(mode), llm.WithMaxTokens(500))
	if err != nil {
		return "", fmt.Errorf("conclusion generation failed: %w", err)
	}

	parts := []string{intro, "# Primary Source Content\n", baseSection, insightsSection, imageSection, conclusion}
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	doc := strings.Join(nonEmpty, "\n\n")
	log.Printf("[%s] Document assembled (intro=%d, base=%d, insights=%d, images=%d, conclusion=%d)",
		sessionID, len(intro), len(baseSection), len(insightsSection), len(imageSection), len(conclusion))

	return doc, nil
}
