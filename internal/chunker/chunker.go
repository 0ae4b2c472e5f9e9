package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codevault/codevault/internal/rules"
	"github.com/codevault/codevault/internal/tokencount"
)

// Chunker turns a source file into enriched Chunks.
type Chunker struct {
	registry *rules.Registry
}

// New builds a Chunker backed by the given language-rule registry.
func New(registry *rules.Registry) *Chunker {
	return &Chunker{registry: registry}
}

// IsSupported reports whether ext (including the leading dot) has a rule.
func (c *Chunker) IsSupported(ext string) bool {
	_, ok := c.registry.Lookup(strings.ToLower(ext))
	return ok
}

// ChunkFile runs the full pipeline for one file. Parse failures of any
// kind never propagate as an error: they degrade to a single fallback
// chunk, since the file processor must still make forward progress and
// update the manifest.
func (c *Chunker) ChunkFile(filePath string, source []byte, profile tokencount.Profile) (chunks []Chunk, stats Stats) {
	defer func() {
		if r := recover(); r != nil {
			chunks = []Chunk{fallbackChunk(filePath, source)}
			stats = Stats{TotalChunks: 1, Fallback: true}
		}
	}()

	ext := strings.ToLower(filepath.Ext(filePath))
	rule, ok := c.registry.Lookup(ext)
	if !ok {
		return []Chunk{fallbackChunk(filePath, source)}, Stats{TotalChunks: 1, Fallback: true}
	}

	tsParser := sitter.NewParser()
	defer tsParser.Close()
	if err := tsParser.SetLanguage(rule.Grammar()); err != nil {
		return []Chunk{fallbackChunk(filePath, source)}, Stats{TotalChunks: 1, Fallback: true}
	}
	tree := tsParser.Parse(source, nil)
	if tree == nil {
		return []Chunk{fallbackChunk(filePath, source)}, Stats{TotalChunks: 1, Fallback: true}
	}
	defer tree.Close()

	tokencount.ClearLineCache(profile.Counter)

	root := tree.RootNode()
	collected := collectNodes(root, rule)
	if len(collected) == 0 {
		return []Chunk{fallbackChunk(filePath, source)}, Stats{TotalChunks: 1, Fallback: true}
	}

	groups := partitionGroups(collected, rule)
	supergroups := greedyCombine(groups, source, profile)

	var stat Stats
	var emitted []Chunk
	for gi, g := range supergroups {
		emitted = append(emitted, c.emitGroup(g, gi, source, filePath, rule.Language, rule, profile, &stat, "")...)
	}

	emitted = mergeOrSkipSmall(emitted, profile, &stat)
	stat.TotalChunks = len(emitted)
	return emitted, stat
}

// emitGroup turns one (super)group into one or more final Chunks,
// descending into subdivisionTypes or the statement-window fallback when
// the group exceeds profile.Max.
func (c *Chunker) emitGroup(g nodeGroup, idx int, source []byte, filePath, language string, rule *rules.Rule, profile tokencount.Profile, stat *Stats, parent string) []Chunk {
	size := groupSize(g, source, profile.Counter)
	if size <= profile.Max {
		return []Chunk{buildChunk(g, idx, source, filePath, language, rule, parent)}
	}

	if len(g.nodes) == 1 {
		node := g.nodes[0]
		if subKinds, ok := rule.SubdivisionTypes[node.Kind()]; ok {
			subNodes := collectSubdivisions(node, subKinds)
			if len(subNodes) > 0 {
				parentName := findSymbolName(node, rule, source)
				subGroups := partitionGroups(subNodes, rule)
				subSuper := greedyCombine(subGroups, source, profile)
				var out []Chunk
				for si, sg := range subSuper {
					out = append(out, c.emitGroup(sg, si, source, filePath, language, rule, profile, stat, parentName)...)
				}
				return out
			}
		}
	}

	return statementWindow(g, source, filePath, language, profile, parent)
}

func buildChunk(g nodeGroup, idx int, source []byte, filePath, language string, rule *rules.Rule, parent string) Chunk {
	text := groupText(g, source)
	startLine := uint32(g.nodes[0].StartPosition().Row) + 1
	endLine := uint32(g.nodes[len(g.nodes)-1].EndPosition().Row) + 1

	var symbol string
	chunkType := g.kind
	if len(g.nodes) == 1 {
		symbol = findSymbolName(g.nodes[0], rule, source)
	} else {
		firstType := g.nodes[0].Kind()
		symbol = fmt.Sprintf("%s_group_%d", firstType, idx)
		chunkType = ChunkTypeGroup
	}

	doc := extractDocComment(g.nodes[0], source, rule)
	tags, intent, description := parseAnnotations(doc)
	signature := extractSignature(text)

	chunk := Chunk{
		Code:        text,
		Symbol:      symbol,
		ChunkType:   chunkType,
		FilePath:    filePath,
		Language:    language,
		StartLine:   startLine,
		EndLine:     endLine,
		Parent:      parent,
		DocString:   doc,
		Intent:      intent,
		Description: description,
		Signature:   signature,
		Parameters:  extractParameters(signature),
		ReturnType:  extractReturnType(signature),
		Calls:       extractCalls(text),
	}
	if len(tags) == 0 {
		tags = mineSemanticTags(filePath, symbol, text)
	}
	chunk.Tags = tags
	finalizeIDs(&chunk)
	return chunk
}

// statementWindow slices an oversized node's source into line ranges of
// ≤ max with an overlap of `overlap`. Token-mode line counting is
// memoized per profile.Counter.
func statementWindow(g nodeGroup, source []byte, filePath, language string, profile tokencount.Profile, parent string) []Chunk {
	text := groupText(g, source)
	lines := strings.Split(text, "\n")
	startLineBase := uint32(g.nodes[0].StartPosition().Row) + 1

	overlap := profile.Overlap
	if overlap < 0 {
		overlap = 0
	}

	var chunks []Chunk
	winIdx := 0
	i := 0
	for i < len(lines) {
		var windowLines []string
		tokens := 0
		j := i
		for j < len(lines) {
			lt := tokencount.CountLine(profile.Counter, lines[j])
			if tokens+lt > profile.Max && len(windowLines) > 0 {
				break
			}
			windowLines = append(windowLines, lines[j])
			tokens += lt
			j++
		}
		if len(windowLines) == 0 {
			windowLines = []string{lines[i]}
			j = i + 1
		}

		windowText := strings.Join(windowLines, "\n")
		startLine := startLineBase + uint32(i)
		endLine := startLineBase + uint32(j) - 1

		chunk := Chunk{
			Code:      windowText,
			Symbol:    fmt.Sprintf("window_%d", winIdx),
			ChunkType: ChunkTypeWindow,
			FilePath:  filePath,
			Language:  language,
			StartLine: startLine,
			EndLine:   endLine,
			Parent:    parent,
		}
		chunk.Signature = extractSignature(windowText)
		chunk.Calls = extractCalls(windowText)
		chunk.Tags = mineSemanticTags(filePath, chunk.Symbol, windowText)
		finalizeIDs(&chunk)
		chunks = append(chunks, chunk)
		winIdx++

		if j >= len(lines) {
			break
		}
		// Advance by window size minus overlap, in line-count terms
		// (character overlap approximated by line count here since
		// window boundaries are line-aligned).
		advance := len(windowLines) - overlapLines(windowLines, overlap)
		if advance < 1 {
			advance = 1
		}
		i += advance
	}
	return chunks
}

func overlapLines(windowLines []string, overlapTokens int) int {
	if overlapTokens <= 0 || len(windowLines) == 0 {
		return 0
	}
	// Approximate: assume overlap is expressed in the same units as Max;
	// back it out to a line count using the average line length of this
	// window rather than a second tokenizer pass.
	avgLen := 0
	for _, l := range windowLines {
		avgLen += len(l)
	}
	avgLen /= len(windowLines)
	if avgLen == 0 {
		return 0
	}
	lines := overlapTokens * 4 / (avgLen + 1)
	if lines > len(windowLines)-1 {
		lines = len(windowLines) - 1
	}
	return lines
}

// mergeOrSkipSmall merges a below-min chunk into the preceding chunk (its
// only possible neighbor, since chunks arrive in source order from a
// single file); a below-min chunk with no preceding chunk yet has no
// neighbor to merge into and is skipped, unless it is the file's last
// chunk: that one is kept, so a file whose chunks are all below min still
// yields one chunk.
func mergeOrSkipSmall(chunks []Chunk, profile tokencount.Profile, stat *Stats) []Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	var out []Chunk
	for i, chunk := range chunks {
		size := profile.Counter.Count(chunk.Code)
		if size >= profile.Min {
			out = append(out, chunk)
			continue
		}
		if len(out) == 0 {
			if i == len(chunks)-1 {
				out = append(out, chunk)
				continue
			}
			stat.SkippedSmall++
			continue
		}
		prev := &out[len(out)-1]
		prev.Code = strings.TrimRight(prev.Code, "\n") + "\n\n" + strings.TrimLeft(chunk.Code, "\n")
		if chunk.EndLine > prev.EndLine {
			prev.EndLine = chunk.EndLine
		}
		prev.Calls = append(prev.Calls, chunk.Calls...)
		finalizeIDs(prev)
		stat.MergedSmall++
	}
	return out
}

// findSymbolName resolves a node's identifier using rule.NameFields first,
// falling back to a depth-first scan for an identifier-like descendant.
func findSymbolName(node *sitter.Node, rule *rules.Rule, source []byte) string {
	for _, field := range rule.NameFields {
		if n := node.ChildByFieldName(field); n != nil {
			return n.Utf8Text(source)
		}
	}
	var found string
	var walk func(n *sitter.Node) bool
	identKinds := map[string]bool{
		"identifier": true, "type_identifier": true, "field_identifier": true,
		"property_identifier": true, "tag_name": true, "key": true,
	}
	walk = func(n *sitter.Node) bool {
		if identKinds[n.Kind()] {
			found = n.Utf8Text(source)
			return true
		}
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			if walk(n.Child(i)) {
				return true
			}
		}
		return false
	}
	walk(node)
	if found == "" {
		return node.Kind()
	}
	return found
}

func finalizeIDs(chunk *Chunk) {
	sum := sha1.Sum([]byte(chunk.Code))
	shaHex := hex.EncodeToString(sum[:])
	chunk.Sha = shaHex
	ident := chunk.Symbol
	if ident == "" {
		ident = chunk.ChunkType
	}
	chunk.ChunkID = fmt.Sprintf("%s:%s:%s", chunk.FilePath, ident, shaHex[:8])
}

func fallbackChunk(filePath string, source []byte) Chunk {
	sum := sha1.Sum(source)
	shaHex := hex.EncodeToString(sum[:])
	chunk := Chunk{
		Code:      string(source),
		Sha:       shaHex,
		Symbol:    filepath.Base(filePath),
		ChunkType: ChunkTypeFallback,
		FilePath:  filePath,
		StartLine: 1,
		EndLine:   uint32(strings.Count(string(source), "\n")) + 1,
	}
	chunk.ChunkID = fmt.Sprintf("%s:fallback:%s", filePath, shaHex[:8])
	return chunk
}
