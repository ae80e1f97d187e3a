package models

import "errors"

// Error taxonomy of the pipeline. Wrap these with fmt.Errorf("...: %w") and
// classify with errors.Is.
var (
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrVideoNotFound          = errors.New("video not found")
	ErrUnsupportedFormat      = errors.New("unsupported video format")
	ErrFrameExtractionFailed  = errors.New("frame extraction failed")
	ErrRecognitionFailed      = errors.New("recognition failed")
	ErrRecognitionUnavailable = errors.New("recognition unavailable")
	ErrNoFramesExtracted      = errors.New("no frames extracted")
	ErrOutputWriteFailed      = errors.New("output write failed")
	ErrAggregatorClosed       = errors.New("aggregator closed")
	ErrTimedOut               = errors.New("timed out")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidConfiguration, "InvalidConfiguration"},
	{ErrVideoNotFound, "VideoNotFound"},
	{ErrUnsupportedFormat, "UnsupportedFormat"},
	{ErrFrameExtractionFailed, "FrameExtractionFailed"},
	{ErrRecognitionUnavailable, "RecognitionUnavailable"},
	{ErrRecognitionFailed, "RecognitionFailed"},
	{ErrNoFramesExtracted, "NoFramesExtracted"},
	{ErrOutputWriteFailed, "OutputWriteFailed"},
	{ErrAggregatorClosed, "AggregatorClosed"},
	{ErrTimedOut, "TimedOut"},
}

// Kind returns the taxonomy name of err, "Unknown" for unclassified errors and
// "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}
