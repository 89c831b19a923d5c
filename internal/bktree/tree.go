// Package bktree implements a Burkhard-Keller tree over case-insensitive
// Levenshtein distance, used to look up book titles and author names by
// approximate spelling.
//
// A Tree is not safe for concurrent mutation. Searches may run in parallel
// with each other but not with Insert or Attach; callers that share a tree
// guard it with a sync.RWMutex.
package bktree

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrRootExists   = errors.New("tree already has a root")
	ErrNoParent     = errors.New("no node at parent path")
	ErrPathTaken    = errors.New("path already holds a node")
	ErrZeroDistance = errors.New("path contains a zero distance")
)

// Outcome reports what an insertion did.
type Outcome int

const (
	// Inserted means a new node was created.
	Inserted Outcome = iota
	// Merged means the identifier was already present and its references
	// were merged into the existing node.
	Merged
)

func (o Outcome) String() string {
	if o == Merged {
		return "merged"
	}
	return "inserted"
}

// Match is a node found by Search.
type Match struct {
	Identifier string
	Kind       Kind
	Refs       Refs
	Distance   int
}

type node struct {
	entry    Entry
	key      []rune
	children map[uint16]*node // distance -> child node
}

func newNode(e Entry) *node {
	e.Refs = NewRefs(e.Refs...)
	return &node{
		entry:    e,
		key:      foldKey(e.Identifier),
		children: make(map[uint16]*node),
	}
}

// Tree is a BK-tree of entries. The zero value is an empty tree.
type Tree struct {
	root  *node
	paths []Path // path of every non-root node, in insertion order
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{}
}

// Insert adds raw with the given references. A leading "@" marks raw as an
// author name.
func (t *Tree) Insert(raw string, refs ...uint32) Outcome {
	kind, id := ParseIdentifier(raw)
	return t.InsertEntry(Entry{Identifier: id, Kind: kind, Refs: refs})
}

// InsertEntry adds e to the tree. If a node with the same case-folded
// identifier exists, e's references are merged into it and no node is
// created; the existing node keeps its kind.
func (t *Tree) InsertEntry(e Entry) Outcome {
	n := newNode(e)
	if t.root == nil {
		t.root = n
		return Inserted
	}

	var path Path
	current := t.root
	for {
		dist := uint16(levenshtein(current.key, n.key))
		if dist == 0 {
			current.entry.Refs = current.entry.Refs.Union(n.entry.Refs)
			return Merged
		}

		path = append(path, dist)
		child, exists := current.children[dist]
		if !exists {
			current.children[dist] = n
			t.paths = append(t.paths, path)
			return Inserted
		}
		current = child
	}
}

// Search returns every entry within tolerance edits of query. A leading "@"
// on query is ignored. Results are in no particular order; see SortMatches.
func (t *Tree) Search(query string, tolerance int) []Match {
	if t.root == nil || tolerance < 0 {
		return nil
	}

	_, q := ParseIdentifier(query)
	key := foldKey(q)

	var matches []Match
	stack := []*node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dist := levenshtein(n.key, key)
		if dist <= tolerance {
			matches = append(matches, Match{
				Identifier: n.entry.Identifier,
				Kind:       n.entry.Kind,
				Refs:       slices.Clone(n.entry.Refs),
				Distance:   dist,
			})
		}

		// Triangle inequality: only children keyed in
		// [dist - tolerance, dist + tolerance] can hold a match
		for childDist, child := range n.children {
			if abs(int(childDist)-dist) <= tolerance {
				stack = append(stack, child)
			}
		}
	}
	return matches
}

// SortMatches orders matches by ascending distance, then identifier.
func SortMatches(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		return cmp.Or(
			cmp.Compare(a.Distance, b.Distance),
			cmp.Compare(a.Identifier, b.Identifier),
			cmp.Compare(a.Kind, b.Kind),
		)
	})
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	if t.root == nil {
		return 0
	}
	return len(t.paths) + 1
}

// Depth returns the number of levels in the tree.
func (t *Tree) Depth() int {
	if t.root == nil {
		return 0
	}
	depth := 1
	for _, p := range t.paths {
		depth = max(depth, len(p)+1)
	}
	return depth
}

// Root returns the root entry.
func (t *Tree) Root() (Entry, bool) {
	if t.root == nil {
		return Entry{}, false
	}
	return cloneEntry(t.root.entry), true
}

// Paths returns a copy of the path table in insertion order.
func (t *Tree) Paths() []Path {
	paths := make([]Path, len(t.paths))
	for i, p := range t.paths {
		paths[i] = slices.Clone(p)
	}
	return paths
}

// Lookup returns the entry stored at path. The empty path is the root.
func (t *Tree) Lookup(path Path) (Entry, bool) {
	n := t.nodeAt(path)
	if n == nil {
		return Entry{}, false
	}
	return cloneEntry(n.entry), true
}

// Walk calls fn for every non-root node, in path table order. It stops at
// the first error fn returns.
func (t *Tree) Walk(fn func(path Path, e Entry) error) error {
	for _, p := range t.paths {
		n := t.nodeAt(p)
		if n == nil {
			return fmt.Errorf("path table entry [%s] does not resolve", p)
		}
		if err := fn(p, n.entry); err != nil {
			return err
		}
	}
	return nil
}

// Attach places e at an explicit path without computing distances. It is
// used to rebuild a tree from its persisted form; Verify checks that the
// placement is consistent with the metric.
func (t *Tree) Attach(path Path, e Entry) error {
	if len(path) == 0 {
		if t.root != nil {
			return ErrRootExists
		}
		t.root = newNode(e)
		return nil
	}
	if slices.Contains(path, 0) {
		return fmt.Errorf("%w: [%s]", ErrZeroDistance, path)
	}

	parent := t.nodeAt(path[:len(path)-1])
	if parent == nil {
		return fmt.Errorf("%w: [%s]", ErrNoParent, path)
	}
	last := path[len(path)-1]
	if _, exists := parent.children[last]; exists {
		return fmt.Errorf("%w: [%s]", ErrPathTaken, path)
	}

	parent.children[last] = newNode(e)
	t.paths = append(t.paths, slices.Clone(path))
	return nil
}

func (t *Tree) nodeAt(path Path) *node {
	current := t.root
	for _, dist := range path {
		if current == nil {
			return nil
		}
		current = current.children[dist]
	}
	return current
}

func cloneEntry(e Entry) Entry {
	e.Refs = slices.Clone(e.Refs)
	return e
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
