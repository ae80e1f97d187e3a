// Package sampler selects frame timestamps from a video timeline and pulls
// still images for them from a decoder.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdougie/framevocab/internal/models"
)

// Decoder turns a video path and a timestamp into an encoded still image.
type Decoder interface {
	Decode(ctx context.Context, videoPath string, ts time.Duration) ([]byte, error)
}

// Timestamps returns 0, gap, 2*gap, ... up to and including the last tick that
// is <= duration. A non-positive duration yields [0] so that every video gets
// at least one attempt.
func Timestamps(duration, gap time.Duration) ([]time.Duration, error) {
	if gap <= 0 {
		return nil, fmt.Errorf("%w: frame gap must be > 0, got %s", models.ErrInvalidConfiguration, gap)
	}
	if duration <= 0 {
		return []time.Duration{0}, nil
	}

	n := int(duration / gap)
	out := make([]time.Duration, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, time.Duration(i)*gap)
	}
	return out, nil
}

// Result summarizes one sampling pass.
type Result struct {
	Timestamps int
	Extracted  int
	Failures   []models.FrameFailure
}

// Sampler extracts one frame per timestamp.
type Sampler struct {
	decoder Decoder
	logger  *slog.Logger
}

func New(decoder Decoder, logger *slog.Logger) *Sampler {
	return &Sampler{decoder: decoder, logger: logger}
}

// Sample decodes a frame at every timestamp of job and hands it to emit, in
// timestamp order. A failed decode is recorded and skipped. Sample stops early
// only when ctx is done between two timestamps or emit returns an error.
func (s *Sampler) Sample(ctx context.Context, job models.VideoJob, emit func(models.Frame) error) (Result, error) {
	stamps, err := Timestamps(job.Duration, job.Gap)
	if err != nil {
		return Result{}, err
	}

	res := Result{Timestamps: len(stamps)}
	s.logger.Debug("sampling video",
		slog.Int("timestamps", len(stamps)),
		slog.Duration("duration", job.Duration),
		slog.Duration("gap", job.Gap),
	)

	// Cancellation is honoured between timestamps only; a decode that has
	// started runs to completion.
	callCtx := context.WithoutCancel(ctx)
	for i, ts := range stamps {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		img, err := s.decoder.Decode(callCtx, job.Path, ts)
		if err != nil {
			failure := models.FrameFailure{
				Index:     i,
				Timestamp: ts,
				Stage:     "extract",
				Err:       wrapExtraction(err),
			}
			res.Failures = append(res.Failures, failure)
			s.logger.Warn("frame extraction failed",
				slog.Int("frame", i),
				slog.Duration("timestamp", ts),
				slog.Any("error", err),
			)
			continue
		}
		res.Extracted++

		if err := emit(models.Frame{Video: job.Name, Index: i, Timestamp: ts, Image: img, Format: "png"}); err != nil {
			return res, err
		}
	}

	return res, nil
}

func wrapExtraction(err error) error {
	if errors.Is(err, models.ErrFrameExtractionFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrFrameExtractionFailed, err)
}
