// Package outline assembles a file's chunks into a hierarchical symbol
// tree for display, independent of the flat chunk list internal/metadb
// and internal/codemap persist.
//
// Uses a name-to-candidate-nodes map with innermost-line-range parent
// resolution over internal/chunker.Chunk's Name/Parent/StartLine/EndLine
// fields.
package outline

import (
	"fmt"
	"strings"

	"github.com/codevault/codevault/internal/chunker"
)

// Node is one entry in a file's outline tree.
type Node struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	FilePath  string  `json:"filePath"`
	StartLine uint32  `json:"startLine"`
	EndLine   uint32  `json:"endLine"`
	Children  []*Node `json:"children,omitempty"`
}

// Build constructs a forest of Nodes from filePath's chunks, nesting each
// chunk under the innermost previously-seen node whose name matches its
// Parent field and whose line range contains it. A chunk whose parent
// cannot be resolved becomes a root: unresolved or duplicate parent
// names fail open to the top level rather than being dropped.
func Build(filePath string, chunks []chunker.Chunk) []*Node {
	if len(chunks) == 0 {
		return nil
	}

	var roots []*Node
	byName := make(map[string][]*Node)

	for _, c := range chunks {
		node := &Node{
			ID:        nodeID(filePath, c),
			Name:      c.Symbol,
			Kind:      c.ChunkType,
			FilePath:  filePath,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
		}

		parentName := strings.TrimSpace(c.Parent)
		if parentName == "" {
			roots = append(roots, node)
		} else if candidates, found := byName[parentName]; found {
			parent := innermostContaining(candidates, node)
			if parent != nil {
				parent.Children = append(parent.Children, node)
			} else {
				roots = append(roots, node)
			}
		} else {
			roots = append(roots, node)
		}

		byName[c.Symbol] = append(byName[c.Symbol], node)
	}

	return roots
}

// innermostContaining returns the most recently seen candidate whose line
// range contains node, searched newest-first so a nested same-named
// container resolves to the closer enclosing one.
func innermostContaining(candidates []*Node, node *Node) *Node {
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].StartLine <= node.StartLine && candidates[i].EndLine >= node.EndLine {
			return candidates[i]
		}
	}
	return nil
}

func nodeID(filePath string, c chunker.Chunk) string {
	return fmt.Sprintf("%s:%d:%d:%s", filePath, c.StartLine, c.EndLine, c.Symbol)
}
