package recognizer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/bdougie/framevocab/internal/models"
)

// Tesseract runs the tesseract CLI, feeding the image on stdin and reading
// the text from stdout.
type Tesseract struct {
	path   string
	args   []string
	logger *slog.Logger
}

// NewTesseract returns an engine for the tesseract binary at path ("tesseract"
// from PATH when empty). extraArgs are appended to every recognition call,
// e.g. "--psm 6".
func NewTesseract(path, extraArgs string, logger *slog.Logger) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	return &Tesseract{path: path, args: strings.Fields(extraArgs), logger: logger}
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte, languages string) (string, error) {
	args := append([]string{"stdin", "stdout", "-l", languages}, t.args...)
	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		return "", fmt.Errorf("%w: tesseract: %v: %s", classify(msg), err, msg)
	}

	// Tesseract still exits 0 for some partially missing language packs.
	if msg := stderr.String(); missingLanguageData(msg) {
		return "", fmt.Errorf("%w: tesseract: %s", models.ErrRecognitionUnavailable, strings.TrimSpace(msg))
	}

	t.logger.Debug("tesseract finished", slog.String("languages", languages), slog.Int("chars", stdout.Len()))
	return stdout.String(), nil
}

// Languages returns the language data installed for tesseract.
func (t *Tesseract) Languages(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, t.path, "--list-langs").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("tesseract --list-langs: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return ParseLanguageList(string(out)), nil
}

// ParseLanguageList parses the output of "tesseract --list-langs", whose
// first line is a header such as `List of available languages in "..." (3):`.
func ParseLanguageList(out string) []string {
	var langs []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "List of available languages") {
			continue
		}
		langs = append(langs, line)
	}
	return langs
}

func classify(stderr string) error {
	if missingLanguageData(stderr) {
		return models.ErrRecognitionUnavailable
	}
	return models.ErrRecognitionFailed
}

func missingLanguageData(stderr string) bool {
	msg := strings.ToLower(stderr)
	keywords := []string{
		"failed loading language",
		"couldn't load any languages",
		"error opening data file",
	}
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
