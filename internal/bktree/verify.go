package bktree

import "fmt"

// InvariantError describes a node that does not sit at its path's distance
// from one of its ancestors.
type InvariantError struct {
	Path       Path
	Identifier string
	Depth      int // index into Path of the offending ancestor
	Want       int // distance recorded in the path
	Got        int // distance actually computed
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("node %q at [%s]: distance to ancestor at depth %d is %d, path says %d",
		e.Identifier, e.Path, e.Depth, e.Got, e.Want)
}

// Verify checks that every node lies at exactly its recorded distance from
// each ancestor on its path, and that the path table covers every node.
func (t *Tree) Verify() error {
	if t.root == nil {
		if len(t.paths) > 0 {
			return fmt.Errorf("empty tree has %d recorded paths", len(t.paths))
		}
		return nil
	}

	for _, p := range t.paths {
		target := t.nodeAt(p)
		if target == nil {
			return fmt.Errorf("path table entry [%s] does not resolve", p)
		}

		ancestor := t.root
		for i, want := range p {
			got := levenshtein(ancestor.key, target.key)
			if got != int(want) {
				return &InvariantError{
					Path:       p,
					Identifier: target.entry.Identifier,
					Depth:      i,
					Want:       int(want),
					Got:        got,
				}
			}
			ancestor = ancestor.children[want]
		}
	}

	if n := t.countNodes(); n != t.Len() {
		return fmt.Errorf("tree holds %d nodes, path table accounts for %d", n, t.Len())
	}
	return nil
}

func (t *Tree) countNodes() int {
	count := 0
	stack := []*node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		for _, child := range n.children {
			stack = append(stack, child)
		}
	}
	return count
}
