package doctree

import (
	"iter"

	"doclink/internal/adapter/linker"
	"doclink/internal/domain"
)

// Tree is an arena of nodes, one per element, with index-based links.
// Node i documents element i of the symbol table.
type Tree struct {
	Nodes []Node
	Roots []int // first-seen order
}

// Node is one element's position in the hierarchy.
type Node struct {
	Element  int
	Parent   int // -1 for roots
	Children []int
	Depth    int
}

// Assemble attaches every element under the canonical element named by
// its parent hint. Elements without a hint are roots; a hint that is
// unresolved, names the element itself, or would close a cycle promotes
// the element to a root with an orphan-parent warning.
func Assemble(t *linker.SymbolTable) (*Tree, []domain.Diagnostic) {
	elements := t.Elements()
	tree := &Tree{Nodes: make([]Node, len(elements))}
	var diags []domain.Diagnostic

	for i := range elements {
		el := &elements[i]
		tree.Nodes[i] = Node{Element: i, Parent: -1}

		if el.ParentHint == "" {
			continue
		}
		if el.ParentHint == el.QualifiedName {
			diags = append(diags, domain.Warn(domain.OrphanParent, el.Location,
				"%s names itself as parent, placed at top level", el.QualifiedName))
			continue
		}
		parent, ok := t.Lookup(el.ParentHint)
		if !ok {
			diags = append(diags, domain.Warn(domain.OrphanParent, el.Location,
				"parent %q of %s is not documented, placed at top level", el.ParentHint, el.QualifiedName))
			continue
		}
		tree.Nodes[i].Parent = parent
	}

	// Hints are names, so two elements can still name each other. Cut
	// the link of the first element found on a cycle.
	for i := range tree.Nodes {
		if onCycle(tree.Nodes, i) {
			el := &elements[i]
			diags = append(diags, domain.Warn(domain.OrphanParent, el.Location,
				"parent %q of %s forms a cycle, placed at top level", el.ParentHint, el.QualifiedName))
			tree.Nodes[i].Parent = -1
		}
	}

	for i := range tree.Nodes {
		if p := tree.Nodes[i].Parent; p >= 0 {
			tree.Nodes[p].Children = append(tree.Nodes[p].Children, i)
		} else {
			tree.Roots = append(tree.Roots, i)
		}
	}

	for _, r := range tree.Roots {
		tree.setDepth(r, 0)
	}

	return tree, diags
}

func onCycle(nodes []Node, start int) bool {
	steps := 0
	for p := nodes[start].Parent; p >= 0; p = nodes[p].Parent {
		if p == start {
			return true
		}
		// Any chain longer than the arena is looping without start on it.
		if steps++; steps > len(nodes) {
			return false
		}
	}
	return false
}

func (t *Tree) setDepth(i, depth int) {
	t.Nodes[i].Depth = depth
	for _, c := range t.Nodes[i].Children {
		t.setDepth(c, depth+1)
	}
}

// Walk yields node indices in pre-order: node, then its children.
func (t *Tree) Walk() iter.Seq[int] {
	return func(yield func(int) bool) {
		var visit func(i int) bool
		visit = func(i int) bool {
			if !yield(i) {
				return false
			}
			for _, c := range t.Nodes[i].Children {
				if !visit(c) {
					return false
				}
			}
			return true
		}
		for _, r := range t.Roots {
			if !visit(r) {
				return
			}
		}
	}
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.Nodes)
}
