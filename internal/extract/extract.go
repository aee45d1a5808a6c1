package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"commonbook-be/internal/dto"
	"commonbook-be/pkg/chunker"
)

// IAdapter turns one uploaded file into plain text ready for chunking.
// An adapter may return empty text for inputs it decides to skip.
type IAdapter interface {
	Extract(ctx context.Context, path string) (string, error)
}

// DetectSourceType classifies a filename by extension. Unknown
// extensions return an error so the upload endpoint can reject early.
func DetectSourceType(filename string) (dto.SourceType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return dto.SourcePDF, nil
	case ".docx":
		return dto.SourceDOCX, nil
	case ".pptx":
		return dto.SourcePPTX, nil
	case ".mp4", ".mkv", ".mov", ".webm", ".avi":
		return dto.SourceVideo, nil
	case ".mp3", ".wav", ".m4a", ".ogg", ".flac":
		return dto.SourceAudio, nil
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return dto.SourceImage, nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
}

// ChunkSourceType maps an upload classification onto the provenance
// value recorded in chunk metadata.
func ChunkSourceType(t dto.SourceType) chunker.SourceType {
	switch t {
	case dto.SourceVideo, dto.SourceAudio, dto.SourceYouTube:
		return chunker.SourceTranscript
	case dto.SourcePPTX:
		return chunker.SourceSlides
	case dto.SourceImage:
		return chunker.SourceImage
	default:
		return chunker.SourceDocument
	}
}

// Registry resolves the adapter responsible for a source type.
type Registry struct {
	adapters map[dto.SourceType]IAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[dto.SourceType]IAdapter)}
}

func (r *Registry) Register(t dto.SourceType, adapter IAdapter) {
	r.adapters[t] = adapter
}

func (r *Registry) For(t dto.SourceType) (IAdapter, error) {
	adapter, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source type %s", t)
	}
	return adapter, nil
}
