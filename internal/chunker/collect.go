package chunker

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codevault/codevault/internal/rules"
	"github.com/codevault/codevault/internal/tokencount"
)

// nodeGroup is one semantic group: either a single container node, or a
// run of consecutive non-container nodes collapsed into one file_section
// group.
type nodeGroup struct {
	nodes []*sitter.Node
	kind  string // ChunkTypeContainer, ChunkTypeFileSection, or ChunkTypeGroup once mergeGroups joins groups of different kinds
}

func (g nodeGroup) empty() bool { return len(g.nodes) == 0 }

func (g nodeGroup) startByte() uint {
	return g.nodes[0].StartByte()
}

func (g nodeGroup) endByte() uint {
	return g.nodes[len(g.nodes)-1].EndByte()
}

func groupText(g nodeGroup, source []byte) string {
	return string(source[g.startByte():g.endByte()])
}

func groupSize(g nodeGroup, source []byte, counter tokencount.Counter) int {
	return counter.Count(groupText(g, source))
}

func mergeGroups(a, b nodeGroup) nodeGroup {
	kind := a.kind
	if kind != ChunkTypeContainer && b.kind == ChunkTypeContainer {
		kind = ChunkTypeContainer
	}
	if a.kind != b.kind {
		kind = ChunkTypeGroup
	}
	return nodeGroup{nodes: append(append([]*sitter.Node{}, a.nodes...), b.nodes...), kind: kind}
}

// collectNodes walks the AST pre-order, emitting the outermost node whose
// kind is in rule.NodeTypes and never descending into an emitted node's
// children.
func collectNodes(root *sitter.Node, rule *rules.Rule) []*sitter.Node {
	var result []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if rule.NodeTypes[n.Kind()] {
			result = append(result, n)
			return
		}
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return result
}

// collectSubdivisions finds, within node's subtree (excluding node itself),
// the outermost descendants whose kind is in kinds.
func collectSubdivisions(node *sitter.Node, kinds []string) []*sitter.Node {
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var result []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if want[n.Kind()] {
			result = append(result, n)
			return
		}
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			walk(n.Child(i))
		}
	}
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		walk(node.Child(i))
	}
	return result
}

// partitionGroups splits nodes into container groups and runs of
// consecutive non-container nodes.
func partitionGroups(nodes []*sitter.Node, rule *rules.Rule) []nodeGroup {
	var groups []nodeGroup
	var run []*sitter.Node
	flushRun := func() {
		if len(run) > 0 {
			groups = append(groups, nodeGroup{nodes: run, kind: ChunkTypeFileSection})
			run = nil
		}
	}
	for _, n := range nodes {
		if rule.ContainerTypes[n.Kind()] {
			flushRun()
			groups = append(groups, nodeGroup{nodes: []*sitter.Node{n}, kind: ChunkTypeContainer})
			continue
		}
		run = append(run, n)
	}
	flushRun()
	return groups
}

// greedyCombine merges adjacent groups of any kind, containers included,
// up to profile.Max. A group larger than profile.Optimal is emitted on its
// own, and a combined group is emitted once it reaches 0.9×profile.Optimal.
func greedyCombine(groups []nodeGroup, source []byte, profile tokencount.Profile) []nodeGroup {
	if len(groups) == 0 {
		return nil
	}
	var out []nodeGroup
	current := groups[0]
	for i := 1; i < len(groups); i++ {
		next := groups[i]
		if groupSize(next, source, profile.Counter) > profile.Optimal {
			if !current.empty() {
				out = append(out, current)
				current = nodeGroup{}
			}
			out = append(out, next)
			continue
		}
		if current.empty() {
			current = next
			continue
		}
		combined := mergeGroups(current, next)
		if groupSize(combined, source, profile.Counter) > profile.Max {
			out = append(out, current)
			current = next
			continue
		}
		current = combined
		if float64(groupSize(current, source, profile.Counter)) >= 0.9*float64(profile.Optimal) {
			out = append(out, current)
			current = nodeGroup{}
		}
	}
	if !current.empty() {
		out = append(out, current)
	}
	return out
}
