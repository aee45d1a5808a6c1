package extract

import (
	"context"
	"fmt"
	"os"

	"commonbook-be/pkg/vision"
)

// Images under this size are almost always icons or decorative assets
// and are skipped without calling the vision model.
const minImageBytes = 5 * 1024

// ImageAdapter describes image content via the vision model. The
// description feeds the synthesis directly and is never deduplicated
// against document text.
type ImageAdapter struct {
	describer vision.Describer
}

var _ IAdapter = &ImageAdapter{}

func NewImageAdapter(describer vision.Describer) *ImageAdapter {
	return &ImageAdapter{describer: describer}
}

func (a *ImageAdapter) Extract(ctx context.Context, path string) (string, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	if stat.Size() < minImageBytes {
		return "", nil
	}

	description, err := a.describer.Describe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}
	if vision.IsUnavailable(description) {
		return "", nil
	}
	return description, nil
}
