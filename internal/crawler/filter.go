package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// LinkFilter reports whether a discovered link should be crawled.
type LinkFilter func(address string) bool

// NewPatternFilter returns a filter over the link path.
// A link whose path matches any ignore pattern is rejected. When follow
// patterns are given, a link must also match one of them.
// Patterns use glob syntax, e.g. "/admin/*", "*.pdf", "/api/v?".
// It returns nil when both lists are empty.
func NewPatternFilter(ignore, follow []string) LinkFilter {
	if len(ignore) == 0 && len(follow) == 0 {
		return nil
	}

	return func(address string) bool {
		u, err := url.Parse(address)
		if err != nil {
			return false
		}
		path := u.Path
		if path == "" {
			path = "/"
		}

		for _, pattern := range ignore {
			if matchPattern(pattern, path) {
				return false
			}
		}

		if len(follow) == 0 {
			return true
		}
		for _, pattern := range follow {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}
}

// matchPattern checks if a path matches a glob pattern.
//   - "/admin/*" matches "/admin" and anything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - "/logout*" matches "/logout" and "/logout/now"
//
// Otherwise filepath.Match semantics apply.
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && !strings.ContainsAny(prefix, "*?[") {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	return err == nil && matched
}
