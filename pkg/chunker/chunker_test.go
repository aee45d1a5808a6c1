package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEmptyInput(t *testing.T) {
	c := New(1000, 200)
	chunks := c.Split("", Meta{SourceID: "doc"})
	assert.NotNil(t, chunks)
	assert.Len(t, chunks, 0)
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	c := New(1000, 200)
	text := "A short paragraph that fits comfortably."

	chunks := c.Split(text, Meta{SourceID: "doc", SourceName: "notes.pdf", SourceType: SourceDocument})

	assert.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, "doc_0", chunks[0].ID)
	assert.Equal(t, 0, chunks[0].Meta.Sequence)
}

func TestSplitFixedWidthFallback(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		size    int
		overlap int
	}{
		{name: "uneven tail", length: 1800, size: 1000, overlap: 200},
		{name: "exact multiple", length: 1600, size: 1000, overlap: 200},
		{name: "barely over", length: 1001, size: 1000, overlap: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No separator anywhere: one giant token.
			text := strings.Repeat("x", tt.length)
			c := New(tt.size, tt.overlap)

			chunks := c.Split(text, Meta{SourceID: "big"})

			step := tt.size - tt.overlap
			want := (tt.length + step - 1) / step
			assert.Len(t, chunks, want)

			// Slices must cover the whole input with no gaps.
			covered := 0
			for i, ch := range chunks {
				start := i * step
				assert.LessOrEqual(t, start, covered, "gap before chunk %d", i)
				if start+len(ch.Text) > covered {
					covered = start + len(ch.Text)
				}
			}
			assert.Equal(t, tt.length, covered)
		})
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("alpha beta gamma. ", 30) // ~540 chars
	text := para + "\n\n" + para + "\n\n" + para

	c := New(600, 100)
	chunks := c.Split(text, Meta{SourceID: "doc"})

	assert.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		// Merged paragraph runs may exceed the target only by the trailing
		// separator bookkeeping, never by a whole extra paragraph.
		assert.LessOrEqual(t, len(ch.Text), 600+len(para))
	}
}

func TestSplitMetadataInheritance(t *testing.T) {
	page := 4
	text := strings.Repeat("fact. ", 400)

	c := New(500, 50)
	chunks := c.Split(text, Meta{
		SourceID:   "lecture",
		SourceName: "lecture.pdf",
		SourceType: SourceDocument,
		Page:       &page,
	})

	assert.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, "lecture", ch.Meta.SourceID)
		assert.Equal(t, SourceDocument, ch.Meta.SourceType)
		assert.Equal(t, &page, ch.Meta.Page)
		assert.Equal(t, i, ch.Meta.Sequence)
	}
}
