package chunker

import (
	"fmt"
	"strings"
)

// SourceType identifies where a chunk's text originally came from.
type SourceType string

const (
	SourceTranscript SourceType = "transcript"
	SourceDocument   SourceType = "document"
	SourceSlides     SourceType = "slides"
	SourceImage      SourceType = "image"
)

// Meta is the fixed-shape provenance record attached to every chunk.
// Page and the timestamp pair are optional depending on the source type.
type Meta struct {
	SourceID   string     `json:"source_id"`
	SourceName string     `json:"source_name"`
	SourceType SourceType `json:"source_type"`
	Page       *int       `json:"page,omitempty"`
	StartSec   *float64   `json:"start_sec,omitempty"`
	EndSec     *float64   `json:"end_sec,omitempty"`
	Sequence   int        `json:"sequence"`
}

// ChunkID builds the stable identifier for the i-th chunk of a source.
func ChunkID(sourceID string, i int) string {
	return fmt.Sprintf("%s_%d", sourceID, i)
}

// Chunk is a bounded text fragment ready for vector indexing.
type Chunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Meta Meta   `json:"metadata"`
}

// Chunker splits long text into overlapping, size-bounded segments.
// It tries separators in priority order to keep splits semantically grouped,
// and falls back to fixed-width slicing when no separator exists.
type Chunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}
	return &Chunker{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: []string{"\n\n", "\n", ". ", " ", ""},
	}
}

// Split chunks the text and stamps every piece with the caller's metadata
// plus a zero-based sequence index. Empty input yields an empty slice.
func (c *Chunker) Split(text string, meta Meta) []Chunk {
	if text == "" {
		return []Chunk{}
	}

	pieces := c.split(text)

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		m := meta
		m.Sequence = i
		chunks = append(chunks, Chunk{
			ID:   ChunkID(meta.SourceID, i),
			Text: piece,
			Meta: m,
		})
	}
	return chunks
}

func (c *Chunker) split(text string) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	// Pick the highest-priority separator actually present.
	separator := ""
	for _, sep := range c.separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			break
		}
	}

	// One unbroken token: fixed-width slices with trailing overlap.
	if separator == "" {
		return c.sliceFixed(text)
	}

	splits := strings.Split(text, separator)

	var final []string
	var current []string
	currentLen := 0

	for _, piece := range splits {
		pieceLen := len(piece)

		if currentLen+pieceLen+len(separator) > c.chunkSize {
			if currentLen > 0 {
				final = append(final, strings.Join(current, separator))

				// Retain the tail of the previous chunk as overlap.
				for currentLen > c.overlap && len(current) > 0 {
					popped := current[0]
					current = current[1:]
					currentLen -= len(popped) + len(separator)
				}
			}
			current = append(current, piece)
			currentLen += pieceLen
		} else {
			current = append(current, piece)
			currentLen += pieceLen + len(separator)
		}
	}

	if len(current) > 0 {
		final = append(final, strings.Join(current, separator))
	}

	return final
}

// sliceFixed cuts the text into chunkSize windows advancing by
// chunkSize-overlap, covering the whole input with no gaps.
func (c *Chunker) sliceFixed(text string) []string {
	step := c.chunkSize - c.overlap
	if step <= 0 {
		step = c.chunkSize
	}

	var out []string
	for i := 0; i < len(text); i += step {
		end := i + c.chunkSize
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[i:end])
	}
	return out
}
