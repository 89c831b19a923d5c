package codec

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"booksearch/internal/bktree"
	"booksearch/internal/fileutil"
)

// SaveOptions tunes Save.
type SaveOptions struct {
	// Compress gzips the encoded text.
	Compress bool
	// Perm is the file mode of the written file; 0 means 0644.
	Perm os.FileMode
}

// Save encodes t into the file at path, replacing it atomically.
func Save(path string, t *bktree.Tree, opts SaveOptions) error {
	perm := opts.Perm
	if perm == 0 {
		perm = 0644
	}

	return fileutil.WriteFileAtomic(path, perm, func(w io.Writer) error {
		if !opts.Compress {
			return Encode(w, t)
		}

		zw := gzip.NewWriter(w)
		if err := Encode(zw, t); err != nil {
			zw.Close()
			return err
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to compress index: %w", err)
		}
		return nil
	})
}

// Load decodes the file at path. Gzipped files are detected by their magic
// bytes. A missing file yields an error matching fs.ErrNotExist.
func Load(path string) (*bktree.Tree, error) {
	return LoadWith(path, DecodeOptions{})
}

// LoadWith is Load with decode options.
func LoadWith(path string, opts DecodeOptions) (*bktree.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br

	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, &DecodeError{Err: ErrCorruptIndex, Detail: "bad gzip header", Cause: err}
		}
		defer zr.Close()
		r = zr
	}

	return DecodeWith(r, opts)
}
