package models

import "time"

// Status is a state of the per-video state machine.
type Status string

const (
	StatusPending            Status = "Pending"
	StatusSampling           Status = "Sampling"
	StatusRecognizing        Status = "Recognizing"
	StatusAggregating        Status = "Aggregating"
	StatusCompleted          Status = "Completed"
	StatusPartiallyCompleted Status = "PartiallyCompleted"
	StatusFailed             Status = "Failed"
)

// Succeeded reports whether s produced output.
func (s Status) Succeeded() bool {
	return s == StatusCompleted || s == StatusPartiallyCompleted
}

// ProcessingOutcome is the result of one VideoJob.
type ProcessingOutcome struct {
	Video      string // VideoJob.Name
	Path       string
	Status     Status
	Words      []string // finalized vocabulary, nil on failure
	Frames     int      // sampled timestamps
	Recognized int      // frames with a recognition result
	Failures   []FrameFailure
	Err        error // reason for StatusFailed
	OutputPath string
	Elapsed    time.Duration
}

// Reason returns the taxonomy name of the failure reason, or "".
func (o ProcessingOutcome) Reason() string {
	return Kind(o.Err)
}
