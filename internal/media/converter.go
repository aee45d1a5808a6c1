package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"commonbook-be/internal/pkg/logger"
)

// Converter extracts a speech-optimized audio track from any media
// container via ffmpeg: 16kHz mono mp3 at 32kbps, the cheapest format
// whisper handles well.
type Converter struct {
	Binary string
	log    logger.ILogger

	commandRunner func(ctx context.Context, name string, args ...string) error
}

func NewConverter(binary string, log logger.ILogger) *Converter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Converter{Binary: binary, log: log}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Converter) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.commandRunner = runner
}

// ExtractAudio writes the audio track of inputPath to outputPath.
// The output is overwritten if it already exists.
func (c *Converter) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("media file not found: %s", inputPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ac", "1",
		"-ar", "16000",
		"-ab", "32k",
		outputPath,
	}
	if err := c.run(ctx, c.Binary, args...); err != nil {
		return fmt.Errorf("audio extraction failed: %w", err)
	}

	c.log.Info("media", "extracted audio track", map[string]interface{}{
		"input":  filepath.Base(inputPath),
		"output": filepath.Base(outputPath),
	})
	return nil
}

func (c *Converter) run(ctx context.Context, name string, args ...string) error {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
