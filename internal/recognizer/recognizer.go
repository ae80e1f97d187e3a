// Package recognizer turns frames into recognized text through an OCR engine
// and classifies engine failures into configuration and per-frame errors.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bdougie/framevocab/internal/models"
)

// Engine is the OCR collaborator. languages is the combined identifier
// ("eng+chi_sim"); the engine recognizes all of them in one pass. Engines
// report missing language data by wrapping models.ErrRecognitionUnavailable.
type Engine interface {
	Recognize(ctx context.Context, image []byte, languages string) (string, error)
}

// LanguageLister is implemented by engines that can report which language
// data they have loaded.
type LanguageLister interface {
	Languages(ctx context.Context) ([]string, error)
}

// DebugWriter receives intermediate images when debug artifacts are enabled.
type DebugWriter interface {
	WriteDebugImage(frame models.Frame, stage string, image []byte) error
}

// Adapter normalizes engine calls into RecognitionResults. It never retries.
type Adapter struct {
	engine Engine
	debug  DebugWriter
	logger *slog.Logger

	listOnce  sync.Once
	installed map[string]bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithDebugWriter enables per-stage debug images.
func WithDebugWriter(w DebugWriter) Option {
	return func(a *Adapter) { a.debug = w }
}

func NewAdapter(engine Engine, logger *slog.Logger, opts ...Option) *Adapter {
	a := &Adapter{engine: engine, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Recognize runs one combined recognition pass over frame.
//
// It fails with models.ErrRecognitionUnavailable when a requested language has
// no loaded data, and with models.ErrRecognitionFailed for anything else.
func (a *Adapter) Recognize(ctx context.Context, frame models.Frame, langs models.LanguageSet) (models.RecognitionResult, error) {
	if langs.Empty() {
		return models.RecognitionResult{}, fmt.Errorf("%w: empty language set", models.ErrInvalidConfiguration)
	}
	if missing := a.missingLanguages(ctx, langs); len(missing) > 0 {
		return models.RecognitionResult{}, fmt.Errorf("%w: no language data loaded for %s",
			models.ErrRecognitionUnavailable, strings.Join(missing, ", "))
	}

	img, err := a.prepare(frame)
	if err != nil {
		return models.RecognitionResult{}, fmt.Errorf("%w: %s: %v", models.ErrRecognitionFailed, frame.Label(), err)
	}

	text, err := a.engine.Recognize(ctx, img, langs.String())
	if err != nil {
		if errors.Is(err, models.ErrRecognitionUnavailable) {
			return models.RecognitionResult{}, err
		}
		if errors.Is(err, models.ErrRecognitionFailed) {
			return models.RecognitionResult{}, err
		}
		return models.RecognitionResult{}, fmt.Errorf("%w: %s: %v", models.ErrRecognitionFailed, frame.Label(), err)
	}

	return models.RecognitionResult{
		FrameIndex: frame.Index,
		Timestamp:  frame.Timestamp,
		Text:       text,
		Languages:  langs.String(),
	}, nil
}

func (a *Adapter) missingLanguages(ctx context.Context, langs models.LanguageSet) []string {
	lister, ok := a.engine.(LanguageLister)
	if !ok {
		return nil
	}

	a.listOnce.Do(func() {
		ids, err := lister.Languages(ctx)
		if err != nil {
			a.logger.Warn("could not list engine languages, relying on engine errors", slog.Any("error", err))
			return
		}
		a.installed = make(map[string]bool, len(ids))
		for _, id := range ids {
			a.installed[id] = true
		}
	})

	if a.installed == nil {
		return nil
	}
	var missing []string
	for _, id := range langs.IDs() {
		if !a.installed[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func (a *Adapter) prepare(frame models.Frame) ([]byte, error) {
	if len(frame.Image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	gray, err := Grayscale(frame.Image)
	if err != nil {
		return nil, err
	}

	if a.debug != nil {
		a.writeDebug(frame, "source", frame.Image)
		a.writeDebug(frame, "grayscale", gray)
	}
	return gray, nil
}

func (a *Adapter) writeDebug(frame models.Frame, stage string, img []byte) {
	if err := a.debug.WriteDebugImage(frame, stage, img); err != nil {
		a.logger.Warn("failed to write debug image",
			slog.String("stage", stage),
			slog.Int("frame", frame.Index),
			slog.Any("error", err),
		)
	}
}
