// Package analyzer recognizes on-screen text with a multimodal model served
// by Ollama, as an alternative to the tesseract engine.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/agent-api/core/pkg/agent"

	"github.com/bdougie/framevocab/internal/models"
)

// transcribeFunc sends prompt and the image at imagePath to the model and
// returns its answer.
type transcribeFunc func(ctx context.Context, prompt, imagePath string) (string, error)

// Engine implements recognizer.Engine on top of a vision agent. The agent
// reads images from disk, so every frame is staged in a temporary file.
type Engine struct {
	transcribe transcribeFunc
	tempDir    string
	logger     *slog.Logger
}

// NewEngine wraps a vision agent.
func NewEngine(a *agent.DefaultAgent, logger *slog.Logger) *Engine {
	return newEngine(func(ctx context.Context, prompt, imagePath string) (string, error) {
		response := a.Run(
			ctx,
			agent.WithInput(prompt),
			agent.WithImagePath(imagePath),
		)
		if response.Err != nil {
			return "", response.Err
		}
		if len(response.Messages) == 0 {
			return "", fmt.Errorf("no response messages received from model")
		}
		// The last message is the model's answer, not the prompt.
		return response.Messages[len(response.Messages)-1].Content, nil
	}, logger)
}

func newEngine(fn transcribeFunc, logger *slog.Logger) *Engine {
	return &Engine{transcribe: fn, tempDir: os.TempDir(), logger: logger}
}

func (e *Engine) Recognize(ctx context.Context, image []byte, languages string) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "framevocab-*.png")
	if err != nil {
		return "", fmt.Errorf("stage frame: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(image); err != nil {
		f.Close()
		return "", fmt.Errorf("stage frame: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("stage frame: %w", err)
	}

	content, err := e.transcribe(ctx, Prompt(languages), f.Name())
	if err != nil {
		return "", fmt.Errorf("%w: vision model: %v", models.ErrRecognitionFailed, err)
	}

	e.logger.Debug("vision model answered", slog.String("languages", languages), slog.Int("chars", len(content)))
	return cleanTranscript(content), nil
}

// Prompt builds the transcription instruction for a combined language spec.
func Prompt(languages string) string {
	ids := strings.Split(languages, "+")
	return fmt.Sprintf(
		"Transcribe every piece of text visible in this image. Expected languages (tesseract codes): %s. "+
			"Output only the transcribed text, one line per visual line.",
		strings.Join(ids, ", "),
	)
}

// cleanTranscript strips markdown code fences that chat models like to add.
func cleanTranscript(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = ""
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
