package bktree

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "dune", 4},
		{"dune", "", 4},
		{"dune", "dune", 0},
		{"Dune", "dUNE", 0},
		{"toolkien", "Tolkien", 1},
		{"kitten", "sitting", 3},
		{"Dune", "Dun", 1},
		{"Dune", "Dune Messiah", 8},
		{"flaw", "lawn", 2},
		{"Émile", "émile", 0},
		{"日本語", "日本", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
			assert.Equal(t, tt.want, Distance(tt.b, tt.a), "distance must be symmetric")
		})
	}
}

func TestDistance_EmptyIsLength(t *testing.T) {
	for _, s := range []string{"a", "ab", "abc", "frank herbert", "ñandú"} {
		assert.Equal(t, len([]rune(s)), Distance("", s), s)
	}
}

func TestDistance_NormalizesComposedForms(t *testing.T) {
	// "é" precomposed vs "e" + combining acute
	assert.Equal(t, 0, Distance("caf\u00e9", "cafe\u0301"))
}

func TestDistance_TriangleInequality(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	words := make([]string, 60)
	for i := range words {
		words[i] = randomWord(rng, "abcAB", 0, 8)
	}

	for _, a := range words {
		for _, b := range words {
			ab := Distance(a, b)
			for _, c := range words[:15] {
				if ab > Distance(a, c)+Distance(c, b) {
					t.Fatalf("triangle inequality broken: d(%q,%q)=%d > d(%q,%q)+d(%q,%q)",
						a, b, ab, a, c, c, b)
				}
			}
		}
	}
}

func TestFoldKey_Truncates(t *testing.T) {
	long := strings.Repeat("x", MaxKeyLen+10)
	assert.Len(t, foldKey(long), MaxKeyLen)
}

func randomWord(rng *rand.Rand, alphabet string, minLen, maxLen int) string {
	n := minLen + rng.IntN(maxLen-minLen+1)
	var b strings.Builder
	for range n {
		b.WriteByte(alphabet[rng.IntN(len(alphabet))])
	}
	return b.String()
}
