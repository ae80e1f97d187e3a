package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/bdougie/framevocab/internal/models"
)

// FFmpeg decodes single still images out of a video with the ffmpeg and
// ffprobe binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

// NewFFmpeg returns a decoder using the given binaries. Empty paths fall back
// to "ffmpeg" and "ffprobe" from PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string, logger *slog.Logger) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// Decode returns one PNG-encoded frame of videoPath at ts.
func (e *FFmpeg) Decode(ctx context.Context, videoPath string, ts time.Duration) ([]byte, error) {
	// -ss before -i seeks on the demuxer, which keeps late timestamps cheap.
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(ts.Seconds(), 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg at %s: %v: %s", models.ErrFrameExtractionFailed, ts, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		// ffmpeg exits cleanly when seeking past the last frame.
		return nil, fmt.Errorf("%w: no image at %s", models.ErrFrameExtractionFailed, ts)
	}

	e.logger.Debug("frame decoded", slog.Duration("timestamp", ts), slog.Int("bytes", stdout.Len()))
	return stdout.Bytes(), nil
}

// Probe returns the container duration reported by ffprobe.
func (e *FFmpeg) Probe(ctx context.Context, videoPath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return ParseDuration(string(output))
}

// ParseDuration converts ffprobe's seconds output ("12.345000") to a duration.
// "N/A" is reported by streams without a known length.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("duration not available")
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
