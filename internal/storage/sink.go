// Package storage persists pipeline results: the local artifact tree and the
// optional remote sinks that receive each ProcessingOutcome.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/bdougie/framevocab/internal/models"
)

// Sink receives the outcome of every processed video after the local words
// file has been written. A sink error never changes the outcome.
type Sink interface {
	Name() string
	Publish(ctx context.Context, runID uuid.UUID, outcome models.ProcessingOutcome) error
	Close() error
}
