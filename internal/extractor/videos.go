package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bdougie/framevocab/internal/models"
)

// SupportedFormats lists the container extensions accepted as input.
var SupportedFormats = []string{".mp4", ".avi", ".mov", ".mkv"}

// IsSupported reports whether path has a supported container extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range SupportedFormats {
		if ext == f {
			return true
		}
	}
	return false
}

// CheckVideo verifies that videoPath exists, is a regular file and has a
// supported container format.
func CheckVideo(videoPath string) error {
	info, err := os.Stat(videoPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: '%s'", models.ErrVideoNotFound, videoPath)
	}
	if err != nil {
		return fmt.Errorf("%w: '%s': %v", models.ErrVideoNotFound, videoPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: '%s' is a directory", models.ErrVideoNotFound, videoPath)
	}
	if !IsSupported(videoPath) {
		return fmt.Errorf("%w: '%s' (supported: %s)", models.ErrUnsupportedFormat, videoPath, strings.Join(SupportedFormats, " "))
	}
	return nil
}

// ExpandInputs replaces every directory in paths with the supported videos it
// contains, sorted by name. Other paths are kept as given so that missing
// files still surface as VideoNotFound for their own video.
func ExpandInputs(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read input directory '%s': %w", p, err)
		}
		var videos []string
		for _, entry := range entries {
			if !entry.IsDir() && IsSupported(entry.Name()) {
				videos = append(videos, filepath.Join(p, entry.Name()))
			}
		}
		sort.Strings(videos)
		out = append(out, videos...)
	}
	return out, nil
}
