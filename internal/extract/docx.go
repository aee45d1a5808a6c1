package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// docx has no page concept, so paragraphs are regrouped into blocks of
// roughly this many characters to give the chunker natural boundaries.
const docxBlockChars = 3000

// DOCXAdapter extracts paragraph text from Word documents.
type DOCXAdapter struct{}

var _ IAdapter = DOCXAdapter{}

func NewDOCXAdapter() DOCXAdapter { return DOCXAdapter{} }

func (DOCXAdapter) Extract(_ context.Context, path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	paragraphs := strings.Split(stripXMLTags(content), "\n")

	var blocks []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > docxBlockChars {
			blocks = append(blocks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		blocks = append(blocks, current.String())
	}
	return strings.Join(blocks, "\n\n"), nil
}

// stripXMLTags drops any residual markup the docx reader leaves in the
// raw document content.
func stripXMLTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
