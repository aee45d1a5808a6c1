package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonbook-be/internal/pkg/logger"
)

func TestExtractAudioBuildsFfmpegInvocation(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "lecture.mp4")
	require.NoError(t, os.WriteFile(input, []byte("fake video"), 0o644))
	output := filepath.Join(dir, "processed", "lecture.mp3")

	var gotName string
	var gotArgs []string
	conv := NewConverter("ffmpeg", logger.NopLogger{})
	conv.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	})

	require.NoError(t, conv.ExtractAudio(context.Background(), input, output))

	assert.Equal(t, "ffmpeg", gotName)
	assert.Contains(t, gotArgs, "-vn")
	assert.Contains(t, gotArgs, "libmp3lame")
	assert.Contains(t, gotArgs, "16000")
	assert.Contains(t, gotArgs, "32k")
	assert.Equal(t, output, gotArgs[len(gotArgs)-1])
	assert.DirExists(t, filepath.Dir(output), "output directory is created up front")
}

func TestExtractAudioMissingInput(t *testing.T) {
	conv := NewConverter("", logger.NopLogger{})
	conv.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		t.Fatal("ffmpeg must not run for a missing input")
		return nil
	})

	err := conv.ExtractAudio(context.Background(), "/nonexistent/clip.mp4", "/tmp/out.mp3")
	assert.ErrorContains(t, err, "media file not found")
}

func TestDownloadAudioReturnsOutputPath(t *testing.T) {
	dir := t.TempDir()

	dl := NewDownloader("yt-dlp", logger.NopLogger{})
	dl.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		assert.Equal(t, "yt-dlp", name)
		assert.Contains(t, args, "bestaudio/best")
		assert.Contains(t, args, "--no-playlist")
		// Simulate yt-dlp writing the converted file.
		return os.WriteFile(filepath.Join(dir, "yt_abc123.mp3"), []byte("audio"), 0o644)
	})

	path, err := dl.DownloadAudio(context.Background(), "https://youtube.com/watch?v=abc123", dir, "yt_abc123")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "yt_abc123.mp3"), path)
}

func TestDownloadAudioEmptyURL(t *testing.T) {
	dl := NewDownloader("", logger.NopLogger{})
	_, err := dl.DownloadAudio(context.Background(), "  ", t.TempDir(), "x")
	assert.ErrorContains(t, err, "empty youtube url")
}

func TestFetchSubtitlesReturnsCaptionPath(t *testing.T) {
	dir := t.TempDir()

	dl := NewDownloader("yt-dlp", logger.NopLogger{})
	dl.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		assert.Equal(t, "yt-dlp", name)
		assert.Contains(t, args, "--skip-download")
		assert.Contains(t, args, "--write-auto-subs")
		assert.Contains(t, args, "vtt")
		return os.WriteFile(filepath.Join(dir, "yt_abc.en.vtt"), []byte("WEBVTT\n"), 0o644)
	})

	path, err := dl.FetchSubtitles(context.Background(), "https://youtube.com/watch?v=abc", dir, "yt_abc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "yt_abc.en.vtt"), path)
}

func TestFetchSubtitlesNoCaptions(t *testing.T) {
	dl := NewDownloader("", logger.NopLogger{})
	dl.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return nil // tool ran but the video has no subtitle tracks
	})

	_, err := dl.FetchSubtitles(context.Background(), "https://youtube.com/watch?v=x", t.TempDir(), "yt_x")
	assert.ErrorContains(t, err, "no captions available")
}

func TestDownloadAudioMissingOutputFails(t *testing.T) {
	dl := NewDownloader("", logger.NopLogger{})
	dl.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return nil // tool "succeeded" but wrote nothing
	})

	_, err := dl.DownloadAudio(context.Background(), "https://youtube.com/watch?v=x", t.TempDir(), "gone")
	assert.ErrorContains(t, err, "downloaded audio missing")
}
