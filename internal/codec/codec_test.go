package codec

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booksearch/internal/bktree"
)

func duneTree() *bktree.Tree {
	tree := bktree.New()
	tree.Insert("Dune", 1)
	tree.Insert("Dune Messiah", 2)
	tree.Insert("@Frank Herbert", 1, 2)
	return tree
}

func TestEncode(t *testing.T) {
	want := "Dune;1\n" +
		"8;Dune Messiah;2\n" +
		"11;@Frank Herbert;1,2\n"
	assert.Equal(t, want, EncodeString(duneTree()))
}

func TestEncode_Empty(t *testing.T) {
	assert.Equal(t, "", EncodeString(bktree.New()))

	tree, err := DecodeString("")
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
}

func TestEncode_EmptyRefs(t *testing.T) {
	tree := bktree.New()
	tree.Insert("Dune")
	tree.Insert("Dunes")
	assert.Equal(t, "Dune;\n1;Dunes;\n", EncodeString(tree))

	decoded, err := DecodeString(EncodeString(tree))
	require.NoError(t, err)
	assertSameTree(t, tree, decoded)
}

func TestRoundTrip(t *testing.T) {
	original := duneTree()
	original.Insert("Children of Dune", 3)
	original.Insert("Dune", 9)
	original.Insert("@Brian Herbert", 4)

	decoded, err := DecodeString(EncodeString(original))
	require.NoError(t, err)
	assertSameTree(t, original, decoded)
	assert.Equal(t, EncodeString(original), EncodeString(decoded))
	assert.NoError(t, decoded.Verify())
}

func TestRoundTrip_Delimiters(t *testing.T) {
	tree := bktree.New()
	entries := []bktree.Entry{
		{Identifier: "Guns, Germs, and Steel", Kind: bktree.KindTitle, Refs: bktree.Refs{1}},
		{Identifier: "Smith; John", Kind: bktree.KindAuthor, Refs: bktree.Refs{1, 2}},
		{Identifier: `C:\Books\index`, Kind: bktree.KindTitle, Refs: bktree.Refs{3}},
		{Identifier: "@home", Kind: bktree.KindTitle, Refs: bktree.Refs{4}},
		{Identifier: "@handle", Kind: bktree.KindAuthor, Refs: bktree.Refs{5}},
		{Identifier: "two\nlines\r", Kind: bktree.KindTitle, Refs: bktree.Refs{6}},
		{Identifier: `trailing\`, Kind: bktree.KindTitle, Refs: bktree.Refs{7}},
		{Identifier: ";;,,", Kind: bktree.KindAuthor, Refs: bktree.Refs{8}},
		{Identifier: "", Kind: bktree.KindTitle, Refs: bktree.Refs{9}},
	}
	for _, e := range entries {
		tree.InsertEntry(e)
	}

	text := EncodeString(tree)
	assert.Equal(t, tree.Len(), strings.Count(text, "\n"), "one line per node")

	decoded, err := DecodeString(text)
	require.NoError(t, err)
	assertSameTree(t, tree, decoded)

	for _, e := range entries {
		// A query prefix is always stripped, so this searches for the literal identifier
		results := decoded.Search(bktree.AuthorPrefix+e.Identifier, 0)
		require.Len(t, results, 1, "identifier %q", e.Identifier)
		assert.Equal(t, e.Identifier, results[0].Identifier)
		assert.Equal(t, e.Kind, results[0].Kind)
		assert.Equal(t, e.Refs, results[0].Refs)
	}
}

func TestRoundTrip_InvalidUTF8(t *testing.T) {
	// Latin-1 bytes as read from a non-UTF-8 CSV file
	tree := bktree.New()
	tree.Insert("Caf\xe9", 1)
	tree.InsertEntry(bktree.Entry{Identifier: "Ren\xe9e;\xff,x", Kind: bktree.KindAuthor, Refs: bktree.Refs{2}})

	decoded, err := DecodeString(EncodeString(tree))
	require.NoError(t, err)
	assertSameTree(t, tree, decoded)

	root, ok := decoded.Root()
	require.True(t, ok)
	assert.Equal(t, "Caf\xe9", root.Identifier)
	assert.Equal(t, EncodeString(tree), EncodeString(decoded))
}

func TestDecode_LegacyFormat(t *testing.T) {
	// Written before escaping: commas inside a title, no backslashes
	legacy := "The Hobbit;1\n" +
		"8;@Tolkien;1,2\n" +
		"17;Guns, Germs, and Steel;3\n"

	tree, err := DecodeString(legacy)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Len())

	e, ok := tree.Lookup(bktree.Path{17})
	require.True(t, ok)
	assert.Equal(t, "Guns, Germs, and Steel", e.Identifier)
	assert.Equal(t, bktree.Refs{3}, e.Refs)

	e, ok = tree.Lookup(bktree.Path{8})
	require.True(t, ok)
	assert.Equal(t, bktree.KindAuthor, e.Kind)
	assert.Equal(t, "Tolkien", e.Identifier)
}

func TestDecode_ToleratesBlankLinesAndCRLF(t *testing.T) {
	tree, err := DecodeString("Dune;1\r\n\r\n8;Dune Messiah;2\r\n\n")
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())

	e, ok := tree.Lookup(bktree.Path{8})
	require.True(t, ok)
	assert.Equal(t, "Dune Messiah", e.Identifier)
}

func TestDecode_UnsortedRefsAreNormalized(t *testing.T) {
	tree, err := DecodeString("Dune;9,1,9,3\n")
	require.NoError(t, err)
	root, _ := tree.Root()
	assert.Equal(t, bktree.Refs{1, 3, 9}, root.Refs)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    error
		line    int
		wrapped error
	}{
		{"root without refs", "Dune\n", ErrCorruptIndex, 1, nil},
		{"node with too few fields", "Dune;1\n8;Dune Messiah\n", ErrCorruptIndex, 2, nil},
		{"missing ancestor", "Dune;1\n3,4;Orphan;2\n", ErrCorruptIndex, 2, bktree.ErrNoParent},
		{"duplicate path", "Dune;1\n8;A;2\n8;B;3\n", ErrCorruptIndex, 3, bktree.ErrPathTaken},
		{"zero distance", "Dune;1\n0;Dune;2\n", ErrCorruptIndex, 2, bktree.ErrZeroDistance},
		{"empty path", "Dune;1\n;Dune Messiah;2\n", ErrCorruptIndex, 2, nil},
		{"non-numeric path", "Dune;1\n8a;Dune Messiah;2\n", ErrCorruptIndex, 2, nil},
		{"path element too large", "Dune;1\n70000;Dune Messiah;2\n", ErrCorruptIndex, 2, nil},
		{"non-numeric root ref", "Dune;x\n", ErrInvalidReference, 1, nil},
		{"negative ref", "Dune;1\n8;Dune Messiah;2,-1\n", ErrInvalidReference, 2, nil},
		{"ref too large", "Dune;4294967296\n", ErrInvalidReference, 1, nil},
		{"empty ref element", "Dune;1,,2\n", ErrInvalidReference, 1, nil},
		{"line number counts blank lines", "Dune;1\n\n\n3,4;Orphan;2\n", ErrCorruptIndex, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := DecodeString(tt.input)
			assert.Nil(t, tree)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			if tt.wrapped != nil {
				assert.ErrorIs(t, err, tt.wrapped)
			}

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.line, decErr.Line)
			assert.Contains(t, err.Error(), fmt.Sprintf("line %d", tt.line))
		})
	}
}

func TestDecode_VerifyRejectsMisplacedNode(t *testing.T) {
	input := "Dune;1\n3;Dune Messiah;2\n"

	tree, err := DecodeString(input)
	require.NoError(t, err, "structure alone is valid")
	assert.Equal(t, 2, tree.Len())

	_, err = DecodeWith(strings.NewReader(input), DecodeOptions{Verify: true})
	assert.ErrorIs(t, err, ErrCorruptIndex)
	var invErr *bktree.InvariantError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, 8, invErr.Got)
}

func TestDecode_LineTooLong(t *testing.T) {
	input := "Dune;1\n8;" + strings.Repeat("x", maxLineSize+1) + ";2\n"
	_, err := DecodeString(input)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}

// Search results over a decoded tree must be identical to those over the
// tree that was encoded.
func TestRoundTrip_SearchEquivalence(t *testing.T) {
	rng := rand.New(rand.NewPCG(2024, 11))
	tree := bktree.New()
	for i := range 50 {
		tree.Insert(randomName(rng, 2+rng.IntN(3)), uint32(i))
		tree.Insert(bktree.AuthorPrefix+randomName(rng, 2), uint32(i))
	}

	decoded, err := DecodeString(EncodeString(tree))
	require.NoError(t, err)
	assertSameTree(t, tree, decoded)

	for range 20 {
		query := randomName(rng, 1+rng.IntN(3))
		tolerance := bktree.DefaultTolerance(query)

		want := tree.Search(query, tolerance)
		got := decoded.Search(query, tolerance)
		bktree.SortMatches(want)
		bktree.SortMatches(got)
		assert.Equal(t, want, got, "query %q", query)
	}
}

func TestRoundTrip_RandomTrees(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*31))
		tree := bktree.New()
		for i := range 200 {
			name := randomName(rng, 1+rng.IntN(3))
			if rng.IntN(4) == 0 {
				name = bktree.AuthorPrefix + name
			}
			tree.Insert(name, uint32(rng.IntN(1000)), uint32(i))
		}

		decoded, err := DecodeWith(strings.NewReader(EncodeString(tree)), DecodeOptions{Verify: true})
		require.NoError(t, err)
		assertSameTree(t, tree, decoded)
	}
}

var syllables = []string{"du", "ne", "ra", "ko", "li", "en", "mes", "si", "ah", "to", "kien", "her", "bert", " "}

func randomName(rng *rand.Rand, n int) string {
	var b strings.Builder
	for range n {
		b.WriteString(syllables[rng.IntN(len(syllables))])
	}
	return b.String()
}

// assertSameTree checks that two trees have the same root, node count, path
// table (as a set) and entries at every path.
func assertSameTree(t *testing.T, want, got *bktree.Tree) {
	t.Helper()

	wantRoot, wantOK := want.Root()
	gotRoot, gotOK := got.Root()
	require.Equal(t, wantOK, gotOK)
	assert.Equal(t, wantRoot, gotRoot)
	assert.Equal(t, want.Len(), got.Len())
	assert.ElementsMatch(t, want.Paths(), got.Paths())

	for _, p := range want.Paths() {
		wantEntry, _ := want.Lookup(p)
		gotEntry, ok := got.Lookup(p)
		if assert.True(t, ok, "path [%s] missing", p) {
			assert.Equal(t, wantEntry, gotEntry, "path [%s]", p)
		}
	}
}
