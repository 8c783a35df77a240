// Package fsutil provides small filesystem helpers for locating frames.
package fsutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var frameExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tif":  {},
	".tiff": {},
	".bmp":  {},
	".fits": {},
	".fit":  {},
}

// IsFrameFile checks if a file looks like a capture frame.
func IsFrameFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := frameExts[ext]
	return ok
}

// ListFrames returns all frame files directly under dir, sorted by
// name. It does not descend into subdirectories, so an aligned output
// directory nested under a capture directory is never picked up.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsFrameFile(e.Name()) {
			frames = append(frames, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

// FirstExisting returns the first path that exists.
func FirstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
