package bktree

import (
	"slices"
	"strconv"
	"strings"
)

// Kind tells what an indexed identifier names.
type Kind uint8

const (
	KindTitle Kind = iota
	KindAuthor
)

// AuthorPrefix marks author identifiers in raw input and in index files.
const AuthorPrefix = "@"

func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindAuthor:
		return "author"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// MarshalText renders the kind by name, e.g. in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseIdentifier splits a raw identifier into its kind and the bare
// identifier. A leading "@" marks an author; anything else is a title.
func ParseIdentifier(raw string) (Kind, string) {
	if id, ok := strings.CutPrefix(raw, AuthorPrefix); ok {
		return KindAuthor, id
	}
	return KindTitle, raw
}

// FormatIdentifier is the inverse of ParseIdentifier.
func FormatIdentifier(kind Kind, id string) string {
	if kind == KindAuthor {
		return AuthorPrefix + id
	}
	return id
}

// Refs is a set of external record keys, kept sorted and free of duplicates.
type Refs []uint32

// NewRefs returns the set holding ids.
func NewRefs(ids ...uint32) Refs {
	if len(ids) == 0 {
		return nil
	}
	refs := slices.Clone(ids)
	slices.Sort(refs)
	return slices.Compact(refs)
}

// Union returns the set of keys present in r or other.
func (r Refs) Union(other Refs) Refs {
	if len(other) == 0 {
		return r
	}
	merged := make(Refs, 0, len(r)+len(other))
	merged = append(merged, r...)
	merged = append(merged, other...)
	return NewRefs(merged...)
}

// Contains reports whether id is in the set.
func (r Refs) Contains(id uint32) bool {
	_, found := slices.BinarySearch(r, id)
	return found
}

// Entry is a logical record held by one tree node.
type Entry struct {
	Identifier string
	Kind       Kind
	Refs       Refs
}

// Path is the chain of distances leading from the root to a node.
type Path []uint16

// String joins the path's distances with commas.
func (p Path) String() string {
	var b strings.Builder
	for i, d := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(d), 10))
	}
	return b.String()
}
