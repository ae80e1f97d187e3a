package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bdougie/framevocab/internal/models"
)

// Files writes the per-video artifacts under one output directory:
//
//	{dir}/{video}_words.txt
//	{dir}/frames/{video}/frame_<ts>.png
//	{dir}/text/{video}/frame_<ts>.txt
//	{dir}/debug/{video}/frame_<ts>_<stage>.png
type Files struct {
	outputDir string
}

// NewFiles creates outputDir if it does not exist.
func NewFiles(outputDir string) (*Files, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory '%s': %w", outputDir, err)
	}
	return &Files{outputDir: outputDir}, nil
}

// WordsPath returns where the vocabulary of video is written.
func (s *Files) WordsPath(video string) string {
	return filepath.Join(s.outputDir, video+"_words.txt")
}

// WriteWords writes one token per line, UTF-8, in the given order. The file
// is replaced atomically so a failed write never leaves a truncated list.
func (s *Files) WriteWords(video string, words []string) (string, error) {
	path := s.WordsPath(video)

	tmp, err := os.CreateTemp(s.outputDir, "."+video+"_words-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrOutputWriteFailed, err)
	}
	cleanup := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %s: %v", models.ErrOutputWriteFailed, path, err)
	}

	w := bufio.NewWriter(tmp)
	for _, word := range words {
		if _, err := w.WriteString(word + "\n"); err != nil {
			return cleanup(err)
		}
	}
	if err := w.Flush(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %s: %v", models.ErrOutputWriteFailed, path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %s: %v", models.ErrOutputWriteFailed, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %s: %v", models.ErrOutputWriteFailed, path, err)
	}
	return path, nil
}

// SaveFrame writes the extracted image of frame.
func (s *Files) SaveFrame(frame models.Frame) error {
	return s.write("frames", frame.Video, frame.Label()+"."+frame.Format, frame.Image)
}

// SaveFrameText writes the raw recognized text of one frame.
func (s *Files) SaveFrameText(video string, result models.RecognitionResult) error {
	return s.write("text", video, models.FrameLabel(result.Timestamp)+".txt", []byte(result.Text))
}

// WriteDebugImage writes one intermediate recognition stage of frame.
func (s *Files) WriteDebugImage(frame models.Frame, stage string, image []byte) error {
	return s.write("debug", frame.Video, fmt.Sprintf("%s_%s.png", frame.Label(), stage), image)
}

func (s *Files) write(kind, video, name string, data []byte) error {
	dir := filepath.Join(s.outputDir, kind, video)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory '%s': %w", kind, dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s artifact: %w", kind, err)
	}
	return nil
}
