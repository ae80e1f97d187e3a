package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framevocab/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith([]string{"clip.mp4"})
	require.NoError(t, err)

	assert.Equal(t, []string{"clip.mp4"}, cfg.Videos)
	assert.Equal(t, 5*time.Second, cfg.Gap())
	assert.Equal(t, "eng", cfg.LanguageSet().String())
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, EngineTesseract, cfg.Engine)
	assert.Equal(t, filepath.Join(".", "video_processing.log"), cfg.LogPath())
	assert.False(t, cfg.SaveFrames)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := LoadWith([]string{
		"--frame-gap", "2.5",
		"--languages", "eng", "chi_sim+chi_tra", "a.mp4",
		"--video", "b.mkv",
		"--save-frames", "--save-frame-text", "--debug",
		"--workers=4",
		"--timeout", "10m",
		"--output", "out",
		"--tesseract-args", "--psm 6",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.mp4", "b.mkv"}, cfg.Videos)
	assert.Equal(t, 2500*time.Millisecond, cfg.Gap())
	assert.Equal(t, "eng+chi_sim+chi_tra", cfg.LanguageSet().String())
	assert.True(t, cfg.SaveFrames)
	assert.True(t, cfg.SaveFrameText)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
	assert.Equal(t, "--psm 6", cfg.Tesseract.Args)
	assert.Equal(t, models.OutputOptions{Dir: "out", SaveFrames: true, SaveFrameText: true, Debug: true}, cfg.Outputs())
}

func TestLanguagesStopAtDirectory(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadWith([]string{"--languages", "jpn", dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"jpn"}, cfg.Languages)
	assert.Equal(t, []string{dir}, cfg.Videos)
}

func TestLanguagesStopAtFileNames(t *testing.T) {
	cases := map[string]string{
		"unsupported extension": "clip.webm",
		"relative path":         "videos/clip",
		"parent path":           "../clip",
	}
	for name, arg := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadWith([]string{"--languages", "eng", "chi_sim+chi_tra", arg})
			require.NoError(t, err)

			assert.Equal(t, []string{"eng", "chi_sim+chi_tra"}, cfg.Languages)
			assert.Equal(t, []string{arg}, cfg.Videos)
		})
	}
}

func TestPrecedenceFileEnvFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "framevocab.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
videos: [from-file.mp4]
frame_gap: 1.0
languages: [deu]
workers: 2
engine: ollama
ollama:
  model: llava
postgres:
  url: postgres://file
`), 0644))
	dotenv := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("FRAMEVOCAB_OLLAMA_PORT=9999\n"), 0644))

	t.Setenv("FRAMEVOCAB_FRAME_GAP", "3")
	t.Setenv("FRAMEVOCAB_POSTGRES_URL", "postgres://env")

	t.Cleanup(func() { os.Unsetenv("FRAMEVOCAB_OLLAMA_PORT") })

	cfg, err := LoadWith([]string{"--config", file, "--workers", "8"}, dotenv)
	require.NoError(t, err)

	assert.Equal(t, []string{"from-file.mp4"}, cfg.Videos)
	assert.Equal(t, 3*time.Second, cfg.Gap())
	assert.Equal(t, []string{"deu"}, cfg.Languages)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, EngineOllama, cfg.Engine)
	assert.Equal(t, "llava", cfg.Ollama.Model)
	assert.Equal(t, 9999, cfg.Ollama.Port)
	assert.Equal(t, "http://localhost", cfg.Ollama.BaseURL)
	assert.Equal(t, "postgres://env", cfg.Postgres.URL)
}

func TestLoadInvalidConfiguration(t *testing.T) {
	cases := map[string][]string{
		"no videos":      {},
		"zero gap":       {"--frame-gap", "0", "a.mp4"},
		"negative gap":   {"--frame-gap", "-1", "a.mp4"},
		"bad gap":        {"--frame-gap", "soon", "a.mp4"},
		"empty language": {"--languages=eng+", "a.mp4"},
		"no languages":   {"--languages", "a.mp4"},
		"zero workers":   {"--workers", "0", "a.mp4"},
		"unknown engine": {"--engine", "magic", "a.mp4"},
		"unknown flag":   {"--fast", "a.mp4"},
		"missing value":  {"a.mp4", "--output"},
		"missing file":   {"--config", "/does/not/exist.yaml", "a.mp4"},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWith(args)
			assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
		})
	}
}

func TestHelp(t *testing.T) {
	_, err := LoadWith([]string{"--help"})
	assert.ErrorIs(t, err, ErrHelp)
}
