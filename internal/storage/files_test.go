package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framevocab/internal/models"
)

func TestWriteWordsOneTokenPerLineUTF8(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFiles(dir)
	require.NoError(t, err)

	path, err := files.WriteWords("clip", []string{"hello", "视频", "視頻"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "clip_words.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n视频\n視頻\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestWriteWordsReplacesExistingFile(t *testing.T) {
	files, err := NewFiles(t.TempDir())
	require.NoError(t, err)

	_, err = files.WriteWords("clip", []string{"old", "words", "here"})
	require.NoError(t, err)
	path, err := files.WriteWords("clip", []string{"new"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))
}

func TestWriteWordsFailureIsOutputWriteFailed(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFiles(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = files.WriteWords("clip", []string{"x"})
	assert.ErrorIs(t, err, models.ErrOutputWriteFailed)
}

func TestArtifactsAreNamedByTimestamp(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFiles(dir)
	require.NoError(t, err)
	frame := models.Frame{Video: "clip", Index: 1, Timestamp: 5 * time.Second, Image: []byte("img"), Format: "png"}

	require.NoError(t, files.SaveFrame(frame))
	require.NoError(t, files.SaveFrameText("clip", models.RecognitionResult{Timestamp: 5 * time.Second, Text: "raw text"}))
	require.NoError(t, files.WriteDebugImage(frame, "grayscale", []byte("gray")))

	assert.FileExists(t, filepath.Join(dir, "frames", "clip", "frame_0005.000s.png"))
	assert.FileExists(t, filepath.Join(dir, "debug", "clip", "frame_0005.000s_grayscale.png"))
	text, err := os.ReadFile(filepath.Join(dir, "text", "clip", "frame_0005.000s.txt"))
	require.NoError(t, err)
	assert.Equal(t, "raw text", string(text))
}

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("5f0c6a52-6f7e-4a43-9c59-3b8d2b4f8e11")

	assert.Equal(t, "vocab/5f0c6a52-6f7e-4a43-9c59-3b8d2b4f8e11/clip_words.txt", ObjectKey("vocab", id, "/out/clip_words.txt"))
	assert.Equal(t, "5f0c6a52-6f7e-4a43-9c59-3b8d2b4f8e11/clip_words.txt", ObjectKey("", id, "clip_words.txt"))
}
