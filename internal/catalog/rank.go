package catalog

import (
	"cmp"
	"slices"

	"booksearch/internal/bktree"
)

// rankedRef is a book reference at the closest distance any matched
// identifier put it
type rankedRef struct {
	ref        uint32
	distance   int
	identifier string
	kind       bktree.Kind
}

// rankMatches collapses matches to one entry per reference, keeping the
// closest match, and orders them by distance then reference.
func rankMatches(matches []bktree.Match) []rankedRef {
	if len(matches) == 0 {
		return nil
	}

	bktree.SortMatches(matches)

	seen := make(map[uint32]bool)
	var ranked []rankedRef
	for _, m := range matches {
		for _, ref := range m.Refs {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			ranked = append(ranked, rankedRef{
				ref:        ref,
				distance:   m.Distance,
				identifier: m.Identifier,
				kind:       m.Kind,
			})
		}
	}

	slices.SortStableFunc(ranked, func(a, b rankedRef) int {
		return cmp.Or(
			cmp.Compare(a.distance, b.distance),
			cmp.Compare(a.ref, b.ref),
		)
	})
	return ranked
}
