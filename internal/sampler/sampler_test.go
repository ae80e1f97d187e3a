package sampler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framevocab/internal/models"
)

type fakeDecoder struct {
	fail  map[time.Duration]bool
	calls []time.Duration
}

func (d *fakeDecoder) Decode(_ context.Context, _ string, ts time.Duration) ([]byte, error) {
	d.calls = append(d.calls, ts)
	if d.fail[ts] {
		return nil, errors.New("corrupt region")
	}
	return []byte("png"), nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTimestampsCountAndSpacing(t *testing.T) {
	cases := []struct {
		duration, gap time.Duration
	}{
		{10 * time.Second, 5 * time.Second},
		{12 * time.Second, 5 * time.Second},
		{7300 * time.Millisecond, 1500 * time.Millisecond},
		{time.Second, 5 * time.Second},
		{59999 * time.Millisecond, 333 * time.Millisecond},
	}

	for _, c := range cases {
		got, err := Timestamps(c.duration, c.gap)
		require.NoError(t, err)

		assert.Len(t, got, int(c.duration/c.gap)+1, "duration=%s gap=%s", c.duration, c.gap)
		assert.Equal(t, time.Duration(0), got[0])
		for i := 1; i < len(got); i++ {
			assert.Equal(t, c.gap, got[i]-got[i-1])
		}
		last := got[len(got)-1]
		assert.LessOrEqual(t, last, c.duration)
		assert.Less(t, c.duration-last, c.gap)
	}
}

func TestTimestampsNoTailFrame(t *testing.T) {
	got, err := Timestamps(12*time.Second, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0, 5 * time.Second, 10 * time.Second}, got)

	got, err = Timestamps(10*time.Second, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0, 5 * time.Second, 10 * time.Second}, got)
}

func TestTimestampsZeroDuration(t *testing.T) {
	got, err := Timestamps(0, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0}, got)

	got, err = Timestamps(-time.Second, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0}, got)
}

func TestTimestampsInvalidGap(t *testing.T) {
	_, err := Timestamps(10*time.Second, 0)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)

	_, err = Timestamps(10*time.Second, -time.Second)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestSampleIsolatesExtractionFailures(t *testing.T) {
	dec := &fakeDecoder{fail: map[time.Duration]bool{5 * time.Second: true}}
	s := New(dec, discard())
	job := models.VideoJob{Path: "v.mp4", Duration: 15 * time.Second, Gap: 5 * time.Second}

	var frames []models.Frame
	res, err := s.Sample(context.Background(), job, func(f models.Frame) error {
		frames = append(frames, f)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Timestamps)
	assert.Equal(t, 3, res.Extracted)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.ErrorIs(t, res.Failures[0].Err, models.ErrFrameExtractionFailed)

	require.Len(t, frames, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{frames[0].Index, frames[1].Index, frames[2].Index})
	assert.Len(t, dec.calls, 4)
}

func TestSampleStopsWhenEmitFails(t *testing.T) {
	dec := &fakeDecoder{}
	s := New(dec, discard())
	job := models.VideoJob{Path: "v.mp4", Duration: 20 * time.Second, Gap: 5 * time.Second}
	stop := errors.New("stop")

	_, err := s.Sample(context.Background(), job, func(models.Frame) error { return stop })

	assert.ErrorIs(t, err, stop)
	assert.Len(t, dec.calls, 1)
}

func TestSampleChecksContextBetweenFrames(t *testing.T) {
	dec := &fakeDecoder{}
	s := New(dec, discard())
	job := models.VideoJob{Path: "v.mp4", Duration: 20 * time.Second, Gap: 5 * time.Second}
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.Sample(ctx, job, func(models.Frame) error {
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, dec.calls, 1)
}
