package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// VideoJob identifies one input video and everything needed to process it.
// It is built once by the orchestrator and never mutated afterwards.
type VideoJob struct {
	Path      string
	Name      string // base name without extension, used for artifact names
	Duration  time.Duration
	Gap       time.Duration
	Languages LanguageSet
	Outputs   OutputOptions
}

// OutputOptions selects the artifacts written for a video.
type OutputOptions struct {
	Dir           string
	SaveFrames    bool
	SaveFrameText bool
	Debug         bool
}

// NewVideoJob builds a job for path. The name is derived from the file's base name.
func NewVideoJob(path string, duration, gap time.Duration, langs LanguageSet, out OutputOptions) VideoJob {
	return VideoJob{
		Path:      path,
		Name:      VideoName(path),
		Duration:  duration,
		Gap:       gap,
		Languages: langs,
		Outputs:   out,
	}
}

// VideoName returns the file name of path without its extension.
func VideoName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Frame is a still image taken at one sample timestamp. It lives only between
// extraction and recognition.
type Frame struct {
	Video     string // VideoJob.Name
	Index     int
	Timestamp time.Duration
	Image     []byte
	Format    string // image encoding, e.g. "png"
}

// Label is the timestamp-based name used for frame artifacts, e.g. "frame_0012.500s".
func (f Frame) Label() string {
	return FrameLabel(f.Timestamp)
}

// FrameLabel formats a sample timestamp as an artifact name.
func FrameLabel(ts time.Duration) string {
	return fmt.Sprintf("frame_%08.3fs", ts.Seconds())
}

// WorkItem represents a frame queued for recognition
type WorkItem struct {
	Frame Frame
	Total int
}

// RecognitionResult is the raw text recognized in one frame under one
// combined language set.
type RecognitionResult struct {
	FrameIndex int
	Timestamp  time.Duration
	Text       string
	Languages  string // combined identifier, e.g. "eng+chi_sim"
}

// FrameFailure records a frame-level error that was isolated by the orchestrator.
type FrameFailure struct {
	Index     int
	Timestamp time.Duration
	Stage     string // "extract" or "recognize"
	Err       error
}

func (f FrameFailure) String() string {
	return fmt.Sprintf("%s at %s (%s): %v", f.Stage, f.Timestamp, Kind(f.Err), f.Err)
}
