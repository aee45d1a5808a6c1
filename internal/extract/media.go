package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"commonbook-be/internal/media"
	"commonbook-be/pkg/speech"
)

// MediaAdapter converts audio or video to 16kHz mono mp3 and runs it
// through the transcriber. Timestamps are embedded inline so they
// survive chunking.
type MediaAdapter struct {
	converter    *media.Converter
	transcriber  speech.Transcriber
	processedDir func(inputPath string) string
}

var _ IAdapter = &MediaAdapter{}

// NewMediaAdapter wires the two external tools. processedDir maps an
// upload path to the directory where intermediate audio should live;
// a nil mapping keeps the audio next to the input.
func NewMediaAdapter(converter *media.Converter, transcriber speech.Transcriber, processedDir func(string) string) *MediaAdapter {
	if processedDir == nil {
		processedDir = filepath.Dir
	}
	return &MediaAdapter{
		converter:    converter,
		transcriber:  transcriber,
		processedDir: processedDir,
	}
}

func (a *MediaAdapter) Extract(ctx context.Context, path string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	audioPath := filepath.Join(a.processedDir(path), base+"_audio.mp3")

	if err := a.converter.ExtractAudio(ctx, path, audioPath); err != nil {
		return "", err
	}
	segments, err := a.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return FormatTranscript(segments), nil
}

// TranscriptFromVTT parses a caption file into the same timed
// transcript format the transcriber produces.
func TranscriptFromVTT(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open captions %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	segments, err := speech.ParseVTT(f)
	if err != nil {
		return "", fmt.Errorf("parse captions %s: %w", filepath.Base(path), err)
	}
	return FormatTranscript(segments), nil
}

// FormatTranscript renders segments as "[MM:SS] text" lines.
func FormatTranscript(segments []speech.Segment) string {
	var sb strings.Builder
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		total := int(s.Start)
		sb.WriteString(fmt.Sprintf("[%02d:%02d] %s\n", total/60, total%60, text))
	}
	return strings.TrimSpace(sb.String())
}
