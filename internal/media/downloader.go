package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"commonbook-be/internal/pkg/logger"
)

// Downloader fetches the best audio stream of a YouTube URL via yt-dlp
// and re-encodes it to mp3 in one pass.
type Downloader struct {
	Binary string
	log    logger.ILogger

	commandRunner func(ctx context.Context, name string, args ...string) error
}

func NewDownloader(binary string, log logger.ILogger) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Downloader{Binary: binary, log: log}
}

// WithCommandRunner sets a custom command runner (for testing).
func (d *Downloader) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	d.commandRunner = runner
}

// DownloadAudio saves the URL's audio as mp3 under destDir and returns
// the resulting file path.
func (d *Downloader) DownloadAudio(ctx context.Context, url, destDir, baseName string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("empty youtube url")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	outputPath := filepath.Join(destDir, baseName+".mp3")
	args := []string{
		"-f", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "32k",
		"--no-playlist",
		"-o", filepath.Join(destDir, baseName+".%(ext)s"),
		url,
	}
	if err := d.run(ctx, d.Binary, args...); err != nil {
		return "", fmt.Errorf("youtube download failed: %w", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("downloaded audio missing at %s: %w", outputPath, err)
	}

	d.log.Info("media", "downloaded youtube audio", map[string]interface{}{
		"url":    url,
		"output": filepath.Base(outputPath),
	})
	return outputPath, nil
}

// FetchSubtitles asks yt-dlp for the URL's English captions, manual or
// auto-generated, without downloading any media. Returns the .vtt path
// or an error when the video carries no captions.
func (d *Downloader) FetchSubtitles(ctx context.Context, url, destDir, baseName string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("empty youtube url")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	args := []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", "en.*",
		"--sub-format", "vtt",
		"--no-playlist",
		"-o", filepath.Join(destDir, baseName+".%(ext)s"),
		url,
	}
	if err := d.run(ctx, d.Binary, args...); err != nil {
		return "", fmt.Errorf("caption fetch failed: %w", err)
	}

	// yt-dlp writes {base}.{lang}.vtt and the language tag varies.
	matches, err := filepath.Glob(filepath.Join(destDir, baseName+"*.vtt"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no captions available for %s", url)
	}
	sort.Strings(matches)

	d.log.Info("media", "fetched youtube captions", map[string]interface{}{
		"url":    url,
		"output": filepath.Base(matches[0]),
	})
	return matches[0], nil
}

func (d *Downloader) run(ctx context.Context, name string, args ...string) error {
	if d.commandRunner != nil {
		return d.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
