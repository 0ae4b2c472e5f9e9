package chunker

import (
	"regexp"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codevault/codevault/internal/rules"
)

var (
	tagsAnnotation        = regexp.MustCompile(`(?im)^\s*@codevault-tags:\s*(.+)$`)
	intentAnnotation      = regexp.MustCompile(`(?im)^\s*@codevault-intent:\s*(.+)$`)
	descriptionAnnotation = regexp.MustCompile(`(?im)^\s*@codevault-description:\s*(.+)$`)

	callPattern   = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	parenContents = regexp.MustCompile(`\(([^()]*)\)`)
	identSplit    = regexp.MustCompile(`[_\-.]+|([a-z0-9])([A-Z])`)

	reservedCallWords = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "func": true,
		"return": true, "catch": true, "def": true, "elif": true, "else": true,
		"in": true, "not": true, "and": true, "or": true, "with": true,
	}

	domainKeywords = []string{
		"auth", "cache", "database", "db", "http", "api", "config", "test",
		"queue", "event", "parser", "token", "index", "search", "rank",
		"embed", "chunk", "store", "manifest", "watch", "lock", "rate",
		"limit", "graph", "symbol", "schema", "migrate", "client", "server",
		"handler", "middleware", "logger", "error", "crypto", "encrypt",
	}
)

// extractDocComment returns the doc comment immediately preceding node:
// the last match of the rule's comment pattern in the 500 bytes preceding
// the node.
func extractDocComment(node *sitter.Node, source []byte, rule *rules.Rule) string {
	if rule.CommentPattern == nil {
		return ""
	}
	start := int(node.StartByte())
	windowStart := start - 500
	if windowStart < 0 {
		windowStart = 0
	}
	window := string(source[windowStart:start])
	match := rule.CommentPattern.FindString(window)
	return strings.TrimSpace(match)
}

// parseAnnotations extracts @codevault-tags/@codevault-intent/
// @codevault-description from a doc comment, never failing.
func parseAnnotations(doc string) (tags []string, intent, description string) {
	if doc == "" {
		return nil, "", ""
	}
	if m := tagsAnnotation.FindStringSubmatch(doc); len(m) == 2 {
		for _, t := range strings.Split(m[1], ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, t)
			}
		}
	}
	if m := intentAnnotation.FindStringSubmatch(doc); len(m) == 2 {
		intent = strings.TrimSpace(m[1])
	}
	if m := descriptionAnnotation.FindStringSubmatch(doc); len(m) == 2 {
		description = strings.TrimSpace(m[1])
	}
	return tags, intent, description
}

// extractSignature, extractParameters, extractReturnType, extractCalls
// pull signature/parameters/returnType/calls by scoped regex over the
// chunk text rather than per-grammar field lookups, applied uniformly
// across languages since rules are data rather than code.
func extractSignature(code string) string {
	firstLine := code
	if idx := strings.IndexAny(code, "{\n"); idx >= 0 {
		// Extend to the closing paren of the parameter list if the first
		// line was cut off before it (multi-line signatures).
		if braceIdx := strings.IndexByte(code, '{'); braceIdx >= 0 && braceIdx < 400 {
			firstLine = strings.TrimSpace(code[:braceIdx])
		} else {
			firstLine = strings.TrimSpace(code[:idx])
		}
	}
	firstLine = strings.Join(strings.Fields(firstLine), " ")
	if len(firstLine) > 400 {
		firstLine = firstLine[:400]
	}
	return firstLine
}

func extractParameters(signature string) []string {
	m := parenContents.FindStringSubmatch(signature)
	if len(m) != 2 || strings.TrimSpace(m[1]) == "" {
		return nil
	}
	parts := strings.Split(m[1], ",")
	params := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		params = append(params, p)
		if len(params) >= 12 {
			break
		}
	}
	return params
}

func extractReturnType(signature string) string {
	loc := parenContents.FindStringIndex(signature)
	if loc == nil {
		return ""
	}
	after := strings.TrimSpace(signature[loc[1]:])
	after = strings.TrimSuffix(after, "{")
	after = strings.TrimSpace(after)
	after = strings.TrimPrefix(after, ":")
	after = strings.TrimPrefix(after, "->")
	after = strings.TrimSpace(after)
	if len(after) > 80 {
		after = after[:80]
	}
	return after
}

func extractCalls(code string) []string {
	matches := callPattern.FindAllStringSubmatch(code, -1)
	seen := make(map[string]bool, len(matches))
	var calls []string
	for _, m := range matches {
		name := m[1]
		if reservedCallWords[name] || seen[name] {
			continue
		}
		seen[name] = true
		calls = append(calls, name)
		if len(calls) >= 50 {
			break
		}
	}
	return calls
}

// mineSemanticTags derives up to 10 tags from path segments, the symbol
// identifier (camel-split, lowercased), and any domain keywords present in
// the chunk text.
func mineSemanticTags(filePath, symbol, code string) []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || len(t) < 2 || seen[t] || len(tags) >= 10 {
			return
		}
		seen[t] = true
		tags = append(tags, t)
	}

	for _, seg := range strings.FieldsFunc(filePath, func(r rune) bool {
		return r == '/' || r == '\\' || r == '.'
	}) {
		add(seg)
	}
	for _, part := range splitIdentifier(symbol) {
		add(part)
	}
	lowerCode := strings.ToLower(code)
	for _, kw := range domainKeywords {
		if strings.Contains(lowerCode, kw) {
			add(kw)
		}
	}
	return tags
}

func splitIdentifier(name string) []string {
	spaced := identSplit.ReplaceAllString(name, "${1} ${2}")
	return strings.Fields(strings.ToLower(spaced))
}
