package codec

import (
	"strings"

	"booksearch/internal/bktree"
)

const (
	fieldSep  = ';'
	listSep   = ','
	escapeTok = '\\'
)

// encodeIdentifier writes the identifier field of a line: "@" for authors,
// then the identifier with delimiters escaped. A title that itself starts
// with "@" gets the "@" escaped so it is not read back as an author.
func encodeIdentifier(b *strings.Builder, kind bktree.Kind, id string) {
	if kind == bktree.KindAuthor {
		b.WriteString(bktree.AuthorPrefix)
	} else if strings.HasPrefix(id, bktree.AuthorPrefix) {
		b.WriteByte(escapeTok)
	}

	// Every delimiter is ASCII, so bytes are copied as is and invalid UTF-8
	// survives the round trip.
	for i := 0; i < len(id); i++ {
		switch c := id[i]; c {
		case escapeTok, fieldSep, listSep:
			b.WriteByte(escapeTok)
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
}

// decodeIdentifier reverses encodeIdentifier. Files written before escaping
// existed contain no escapes and decode unchanged, provided their
// identifiers hold no ";" (those files could not represent one anyway).
func decodeIdentifier(field string) (bktree.Kind, string) {
	if id, ok := strings.CutPrefix(field, bktree.AuthorPrefix); ok {
		return bktree.KindAuthor, unescape(id)
	}
	return bktree.KindTitle, unescape(field)
}

// unescape resolves backslash escapes. Unknown sequences are kept as
// written.
func unescape(s string) string {
	if strings.IndexByte(s, escapeTok) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != escapeTok || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		switch next := s[i+1]; next {
		case escapeTok, fieldSep, listSep, '@':
			b.WriteByte(next)
			i++
		case 'n':
			b.WriteByte('\n')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// splitFields splits line on unescaped field separators into at most n
// fields; the last field holds the remainder.
func splitFields(line string, n int) []string {
	fields := make([]string, 0, n)
	start := 0
	for i := 0; i < len(line) && len(fields) < n-1; i++ {
		switch line[i] {
		case escapeTok:
			i++
		case fieldSep:
			fields = append(fields, line[start:i])
			start = i + 1
		}
	}
	return append(fields, line[start:])
}
