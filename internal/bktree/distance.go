package bktree

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MaxKeyLen is the longest comparison key, in runes, that takes part in
// distance computation. It keeps every distance inside a uint16 child key.
const MaxKeyLen = 1<<16 - 1

// foldKey returns the comparison form of s: NFC-normalized, case-folded and
// truncated to MaxKeyLen runes.
//
// A cases.Caser is stateful, so a new one is created per call.
func foldKey(s string) []rune {
	key := []rune(cases.Fold().String(norm.NFC.String(s)))
	if len(key) > MaxKeyLen {
		key = key[:MaxKeyLen]
	}
	return key
}

// Distance calculates the case-insensitive Levenshtein distance between two
// strings, counted in runes of their case-folded form.
func Distance(a, b string) int {
	return levenshtein(foldKey(a), foldKey(b))
}

// levenshtein computes the edit distance between two rune slices using two
// rows of the distance matrix.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Keep the rows as short as the shorter input
	if len(a) > len(b) {
		a, b = b, a
	}

	previous := make([]int, len(a)+1)
	current := make([]int, len(a)+1)
	for i := range previous {
		previous[i] = i
	}

	for j := 1; j <= len(b); j++ {
		current[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[i] = min(previous[i]+1, current[i-1]+1, previous[i-1]+cost)
		}
		previous, current = current, previous
	}

	return previous[len(a)]
}
