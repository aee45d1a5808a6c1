package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	notesNameRe = regexp.MustCompile(`^ppt/notesSlides/notesSlide(\d+)\.xml$`)
)

// PPTXAdapter reads a pptx archive directly: each slide's text runs
// plus any speaker notes, in slide order.
type PPTXAdapter struct{}

var _ IAdapter = PPTXAdapter{}

func NewPPTXAdapter() PPTXAdapter { return PPTXAdapter{} }

func (PPTXAdapter) Extract(_ context.Context, path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}
	defer archive.Close()

	slides := map[int]string{}
	notes := map[int]string{}
	for _, file := range archive.File {
		var target map[int]string
		var match []string
		if m := slideNameRe.FindStringSubmatch(file.Name); m != nil {
			target, match = slides, m
		} else if m := notesNameRe.FindStringSubmatch(file.Name); m != nil {
			target, match = notes, m
		} else {
			continue
		}
		num, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		target[num] = textRuns(string(data))
	}

	numbers := make([]int, 0, len(slides))
	for n := range slides {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var sb strings.Builder
	for _, n := range numbers {
		body := strings.TrimSpace(slides[n])
		note := strings.TrimSpace(notes[n])
		if body == "" && note == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("--- Slide %d ---\n", n))
		if body != "" {
			sb.WriteString(body)
			sb.WriteString("\n")
		}
		if note != "" {
			sb.WriteString("Notes: ")
			sb.WriteString(note)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

// textRuns pulls the contents of every <a:t> run out of slide XML.
func textRuns(xmlContent string) string {
	var sb strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if end := strings.Index(part, "</a:t>"); end >= 0 {
			sb.WriteString(part[:end])
			sb.WriteString(" ")
		}
	}
	return sb.String()
}
