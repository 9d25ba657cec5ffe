package engine

import (
	"regexp"
	"sort"
	"strings"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// DedupKey builds a deterministic deduplication key from the semantic parts
// of a notifiable condition. Parts are normalized, sorted, and joined so two
// runs reporting the same condition always produce the same key, and any
// change to the set of parts produces a different one.
func DedupKey(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		p = reWhitespace.ReplaceAllString(strings.TrimSpace(p), " ")
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	sort.Strings(normalized)
	return strings.Join(normalized, "|")
}
