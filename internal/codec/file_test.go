package codec

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "index.txt")
	tree := duneTree()

	require.NoError(t, Save(path, tree, SaveOptions{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, EncodeString(tree), string(data))

	loaded, err := Load(path)
	require.NoError(t, err)
	assertSameTree(t, tree, loaded)
}

func TestSaveLoad_Compressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt.gz")
	tree := duneTree()

	require.NoError(t, Save(path, tree, SaveOptions{Compress: true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, data[:2], "expected gzip magic")

	loaded, err := LoadWith(path, DecodeOptions{Verify: true})
	require.NoError(t, err)
	assertSameTree(t, tree, loaded)
}

func TestSave_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	tree := duneTree()
	require.NoError(t, Save(path, tree, SaveOptions{}))

	tree.Insert("Children of Dune", 3)
	require.NoError(t, Save(path, tree, SaveOptions{Perm: 0600}))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoad_TruncatedGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt.gz")
	tree := duneTree()
	for i := range 200 {
		tree.Insert(randomNameForIndex(i), uint32(i))
	}
	require.NoError(t, Save(path, tree, SaveOptions{Compress: true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0644))

	// The cut may land inside a line, so either decode error is acceptable
	_, err = Load(path)
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestLoad_CorruptPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, []byte("Dune;1\n3,4;Orphan;2\n"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}

func randomNameForIndex(i int) string {
	return syllables[i%len(syllables)] + syllables[(i/3)%len(syllables)] + syllables[(i/7)%len(syllables)]
}
