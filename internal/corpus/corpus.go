// Package corpus enumerates test result files laid out as
// <language>/<speller>/<test-kind>/<file>.xml and computes which of them still
// need to be aggregated.
package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Pattern matches candidate test files relative to the corpus root.
const Pattern = "*/*/*/*.xml"

// pathSegments is the number of slash-separated segments of a corpus path.
const pathSegments = 4

// ErrBadPath is returned for paths that do not have exactly four segments.
var ErrBadPath = errors.New("corpus path must be language/speller/test-kind/file")

// excludedMarkers flag rolling alias names ("latest", "previous") that point
// at other runs and must never be stored as stable entries.
var excludedMarkers = []string{"latest", "previous"}

// Key is the position of a test file inside the corpus tree.
type Key struct {
	Language string
	Speller  string
	Kind     string
	File     string
}

// ParseKey splits a slash-separated corpus path into its segments.
func ParseKey(p string) (Key, error) {
	parts := strings.Split(p, "/")
	if len(parts) != pathSegments {
		return Key{}, fmt.Errorf("%w: %q", ErrBadPath, p)
	}

	for _, part := range parts {
		if part == "" {
			return Key{}, fmt.Errorf("%w: %q", ErrBadPath, p)
		}
	}

	return Key{Language: parts[0], Speller: parts[1], Kind: parts[2], File: parts[3]}, nil
}

// Path joins the key back into its corpus path.
func (k Key) Path() string {
	return path.Join(k.Language, k.Speller, k.Kind, k.File)
}

// Scan lists every file matching Pattern in fsys, sorted.
func Scan(fsys fs.FS) ([]string, error) {
	matches, err := fs.Glob(fsys, Pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", Pattern, err)
	}

	files := matches[:0]

	for _, match := range matches {
		info, statErr := fs.Stat(fsys, match)
		if statErr != nil || info.IsDir() {
			continue
		}

		files = append(files, match)
	}

	sort.Strings(files)

	return files, nil
}

// Excluded reports whether p names a rolling alias.
func Excluded(p string) bool {
	for _, marker := range excludedMarkers {
		if strings.Contains(p, marker) {
			return true
		}
	}

	return false
}

// Pending returns the scanned paths that are neither already aggregated nor
// rolling aliases, preserving scan order.
func Pending(scanned []string, existing map[string]struct{}) []string {
	pending := make([]string, 0, len(scanned))

	for _, p := range scanned {
		if _, done := existing[p]; done {
			continue
		}

		if Excluded(p) {
			continue
		}

		pending = append(pending, p)
	}

	return pending
}
