package relay

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Transcoder converts an uploaded audio file of any ffmpeg-decodable
// container/codec into the fixed recognition format.
type Transcoder interface {
	// Transcode writes inputPath re-encoded as mono 16 kHz 16-bit linear
	// PCM WAV to outputPath. Failure means the input is corrupt or
	// unsupported; it is never retried.
	Transcode(ctx context.Context, inputPath, outputPath string) error
}

// FFmpegTranscoder shells out to ffmpeg. The deterministic target format is
// what the recognition backend is configured for: LINEAR16 at 16000 Hz,
// single channel.
type FFmpegTranscoder struct {
	path string
}

var _ Transcoder = (*FFmpegTranscoder)(nil)

// NewFFmpegTranscoder creates a transcoder using the given ffmpeg binary,
// or "ffmpeg" from PATH when empty.
func NewFFmpegTranscoder(path string) *FFmpegTranscoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegTranscoder{path: path}
}

// Transcode runs ffmpeg once; stderr is folded into the returned error so
// the caller's 500 body names the actual decode failure.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, inputPath, outputPath string) error {
	if _, err := exec.LookPath(t.path); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.path,
		"-y",
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg transcoding failed: %w: %s", err, stderr.String())
	}
	return nil
}
