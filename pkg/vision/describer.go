package vision

import (
	"context"
)

// UnavailableSentinel prefixes descriptions that could not be produced.
// Downstream assembly filters on this prefix instead of parsing errors.
const UnavailableSentinel = "[Description Unavailable"

// Describer converts an image file into a dense natural-language
// description of its information content (charts, diagrams, figures).
type Describer interface {
	Describe(ctx context.Context, imagePath string) (string, error)
}

// IsUnavailable reports whether a description is the explicit sentinel.
func IsUnavailable(description string) bool {
	return len(description) >= len(UnavailableSentinel) &&
		description[:len(UnavailableSentinel)] == UnavailableSentinel
}
