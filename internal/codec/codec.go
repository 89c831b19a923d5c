// Package codec persists a bktree.Tree as line-oriented text.
//
// The first line holds the root entry:
//
//	<identifier>;<refs>
//
// Every other line holds one non-root node, in the order the tree recorded
// their paths:
//
//	<path>;<identifier>;<refs>
//
// <path> and <refs> are comma-separated decimal lists. Author identifiers
// carry a leading "@". Backslash escapes "\\", "\;", "\,", "\n", "\r" and a
// leading "\@" protect identifiers that contain delimiters.
package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"booksearch/internal/bktree"
)

// maxLineSize bounds a single encoded line when decoding.
const maxLineSize = 16 << 20

var (
	// ErrCorruptIndex means the input does not describe a valid tree: a
	// path with no matching ancestor, a line with too few fields, or a
	// node that breaks the tree's distance invariant.
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrInvalidReference means a reference list did not parse as
	// unsigned 32-bit integers.
	ErrInvalidReference = errors.New("invalid reference")
)

// DecodeError reports where and why decoding failed. It matches
// ErrCorruptIndex or ErrInvalidReference with errors.Is, and its cause with
// errors.As.
type DecodeError struct {
	Line   int   // 1-based line number, 0 when not tied to a line
	Err    error // ErrCorruptIndex or ErrInvalidReference
	Detail string
	Cause  error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// DecodeOptions tunes decoding.
type DecodeOptions struct {
	// Verify recomputes every node's distance to its ancestors after
	// decoding and rejects the input as corrupt on any mismatch.
	Verify bool
}

// Encode writes t to w. An empty tree produces no output.
func Encode(w io.Writer, t *bktree.Tree) error {
	root, ok := t.Root()
	if !ok {
		return nil
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(encodeLine(nil, root))

	err := t.Walk(func(path bktree.Path, e bktree.Entry) error {
		_, err := bw.WriteString(encodeLine(path, e))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// EncodeString returns the encoded form of t.
func EncodeString(t *bktree.Tree) string {
	var b strings.Builder
	// strings.Builder never fails a write
	_ = Encode(&b, t)
	return b.String()
}

func encodeLine(path bktree.Path, e bktree.Entry) string {
	var b strings.Builder
	if path != nil {
		b.WriteString(path.String())
		b.WriteByte(fieldSep)
	}
	encodeIdentifier(&b, e.Kind, e.Identifier)
	b.WriteByte(fieldSep)
	for i, ref := range e.Refs {
		if i > 0 {
			b.WriteByte(listSep)
		}
		b.WriteString(strconv.FormatUint(uint64(ref), 10))
	}
	b.WriteByte('\n')
	return b.String()
}

// Decode reads a tree from r.
func Decode(r io.Reader) (*bktree.Tree, error) {
	return DecodeWith(r, DecodeOptions{})
}

// DecodeString reads a tree from s.
func DecodeString(s string) (*bktree.Tree, error) {
	return Decode(strings.NewReader(s))
}

// DecodeWith reads a tree from r. Any failure leaves nothing usable: the
// returned error is a *DecodeError and the tree is nil.
func DecodeWith(r io.Reader, opts DecodeOptions) (*bktree.Tree, error) {
	tree := bktree.New()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		var err error
		if tree.Len() == 0 {
			err = decodeRoot(tree, line)
		} else {
			err = decodeNode(tree, line)
		}
		if err != nil {
			var decErr *DecodeError
			if errors.As(err, &decErr) {
				decErr.Line = lineNo
			}
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &DecodeError{Line: lineNo + 1, Err: ErrCorruptIndex, Detail: "unreadable input", Cause: err}
	}

	if opts.Verify {
		if err := tree.Verify(); err != nil {
			return nil, &DecodeError{Err: ErrCorruptIndex, Detail: "verification failed", Cause: err}
		}
	}
	return tree, nil
}

func decodeRoot(tree *bktree.Tree, line string) error {
	fields := splitFields(line, 2)
	if len(fields) < 2 {
		return &DecodeError{Err: ErrCorruptIndex, Detail: "root line needs identifier and references"}
	}

	entry, err := decodeEntry(fields[0], fields[1])
	if err != nil {
		return err
	}
	if err := tree.Attach(nil, entry); err != nil {
		return &DecodeError{Err: ErrCorruptIndex, Cause: err}
	}
	return nil
}

func decodeNode(tree *bktree.Tree, line string) error {
	fields := splitFields(line, 3)
	if len(fields) < 3 {
		return &DecodeError{Err: ErrCorruptIndex, Detail: "node line needs path, identifier and references"}
	}

	path, err := parsePath(fields[0])
	if err != nil {
		return err
	}
	entry, err := decodeEntry(fields[1], fields[2])
	if err != nil {
		return err
	}
	if err := tree.Attach(path, entry); err != nil {
		return &DecodeError{Err: ErrCorruptIndex, Cause: err}
	}
	return nil
}

func decodeEntry(idField, refsField string) (bktree.Entry, error) {
	refs, err := parseRefs(refsField)
	if err != nil {
		return bktree.Entry{}, err
	}
	kind, id := decodeIdentifier(idField)
	return bktree.Entry{Identifier: id, Kind: kind, Refs: refs}, nil
}

func parsePath(s string) (bktree.Path, error) {
	if s == "" {
		return nil, &DecodeError{Err: ErrCorruptIndex, Detail: "empty path"}
	}

	parts := strings.Split(s, string(listSep))
	path := make(bktree.Path, len(parts))
	for i, part := range parts {
		d, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return nil, &DecodeError{Err: ErrCorruptIndex, Detail: fmt.Sprintf("bad path element %q", part)}
		}
		path[i] = uint16(d)
	}
	return path, nil
}

func parseRefs(s string) (bktree.Refs, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, string(listSep))
	refs := make([]uint32, len(parts))
	for i, part := range parts {
		ref, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, &DecodeError{Err: ErrInvalidReference, Detail: fmt.Sprintf("bad reference %q", part)}
		}
		refs[i] = uint32(ref)
	}
	return bktree.NewRefs(refs...), nil
}
