package pathutil

import (
	"path/filepath"
	"strings"
)

// MatchesAny reports whether path matches any of the given glob patterns.
// Patterns are tried against the base name, the path relative to root, and
// the full path, so both "*.env" and "config/*.pem" style patterns work.
func MatchesAny(path, root string, patterns []string) bool {
	rel := path
	if root != "" {
		if r, err := filepath.Rel(root, path); err == nil {
			rel = r
		}
	}
	base := filepath.Base(path)

	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		// Patterns without glob metacharacters match as substrings.
		if !strings.ContainsAny(pattern, "*?[") && strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}
