// Package extract produces an audio file from a video file on local
// disk by shelling out to ffmpeg, the C3 Audio Extractor of
// spec.md §4.3.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Extractor extracts audio from a local video file into a local audio
// file.
type Extractor interface {
	Extract(ctx context.Context, videoPath, audioPath string) error
}

// commandRunner abstracts process execution so tests can substitute a
// fake without shelling out, the same split korvin3-media-transcriber
// uses between its execRunner and the commandRunner interface.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stderr.Bytes(), err
	}
	return stderr.Bytes(), nil
}

// FFmpegExtractor shells out to the ffmpeg binary. It owns no state
// between calls (spec.md §4.3).
type FFmpegExtractor struct {
	runner commandRunner
	binary string
}

// NewFFmpegExtractor creates an extractor that invokes the named
// ffmpeg binary (usually just "ffmpeg", resolved via PATH).
func NewFFmpegExtractor(binary string) *FFmpegExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegExtractor{runner: execRunner{}, binary: binary}
}

// Extract produces an MP3-encoded, variable-bitrate quality-2 audio
// file with no video stream, per spec.md §4.3.
func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath, audioPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-q:a", "2",
		audioPath,
	}
	diag, err := e.runner.Run(ctx, e.binary, args...)
	if err != nil {
		return fmt.Errorf("extract: ffmpeg failed: %w: %s", err, diag)
	}
	return nil
}
