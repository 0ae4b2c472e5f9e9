package rank

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/codevault/codevault/internal/metadb"
)

// docPathMarkers names the file-path substrings that earn the
// documentation boost during dense scoring.
var docPathMarkers = []string{"readme", "docs/", "changelog", "contributing", ".md"}

// applyScope filters chunks down to those matching every set Scope field.
func applyScope(chunks []metadb.Chunk, scope Scope) ([]metadb.Chunk, error) {
	var pathGlob glob.Glob
	if scope.PathGlob != "" {
		g, err := glob.Compile(scope.PathGlob, '/')
		if err != nil {
			return nil, err
		}
		pathGlob = g
	}

	wantTags := make(map[string]bool, len(scope.Tags))
	for _, t := range scope.Tags {
		wantTags[strings.ToLower(t)] = true
	}
	wantLang := strings.ToLower(scope.Lang)

	out := make([]metadb.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if pathGlob != nil && !pathGlob.Match(c.FilePath) {
			continue
		}
		if wantLang != "" && strings.ToLower(c.Language) != wantLang {
			continue
		}
		if len(wantTags) > 0 && !tagsIntersect(c.Tags, wantTags) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func tagsIntersect(tags []string, want map[string]bool) bool {
	for _, t := range tags {
		if want[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

func isDocPath(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range docPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func normalizeQuery(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
