package database

import (
	"bytes"
	"strings"
)

// Text copy format: one row per line, columns separated by a tab, \N for
// NULL and backslash escapes for the delimiter, line breaks and the
// backslash itself.
const (
	copyDelimiter = '\t'
	copyNewline   = '\n'
	copyNull      = `\N`
)

// AppendLine appends cells to dst as one escaped, newline-terminated copy
// line.
func AppendLine(dst []byte, cells []Cell) []byte {
	for i, c := range cells {
		if i > 0 {
			dst = append(dst, copyDelimiter)
		}
		if !c.Valid {
			dst = append(dst, copyNull...)
			continue
		}
		dst = appendEscaped(dst, c.Text)
	}
	return append(dst, copyNewline)
}

func appendEscaped(dst []byte, s string) []byte {
	if !strings.ContainsAny(s, "\\\t\n\r") {
		return append(dst, s...)
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// splitLine parses one copy line into cells, reusing cells' storage. The
// trailing newline is optional.
func splitLine(line []byte, cells []Cell) []Cell {
	cells = cells[:0]
	line = bytes.TrimSuffix(line, []byte{copyNewline})
	for {
		field, rest, more := bytes.Cut(line, []byte{copyDelimiter})
		if string(field) == copyNull {
			cells = append(cells, Cell{})
		} else {
			cells = append(cells, Cell{Text: unescape(field), Valid: true})
		}
		if !more {
			return cells
		}
		line = rest
	}
}

var unescapeMap = [256]byte{
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
	'\\': '\\',
}

// unescape decodes backslash sequences. \ooo is an octal byte and \xh or
// \xhh a hex byte; any other escaped character stands for itself and a
// trailing lone backslash is kept.
func unescape(field []byte) string {
	if bytes.IndexByte(field, '\\') < 0 {
		return string(field)
	}
	var b strings.Builder
	b.Grow(len(field))
	for i := 0; i < len(field); i++ {
		c := field[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(field) {
			b.WriteByte('\\')
			break
		}
		c = field[i]
		switch {
		case unescapeMap[c] != 0:
			b.WriteByte(unescapeMap[c])
		case c == 'x':
			v, n := readDigits(field[i+1:], 2, 16)
			if n == 0 {
				b.WriteByte('x')
				continue
			}
			b.WriteByte(v)
			i += n
		case c >= '0' && c <= '7':
			v, n := readDigits(field[i:], 3, 8)
			b.WriteByte(v)
			i += n - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// readDigits reads up to limit digits of the given base from the start of s.
func readDigits(s []byte, limit int, base byte) (byte, int) {
	var v byte
	n := 0
	for n < limit && n < len(s) {
		d, ok := digitValue(s[n])
		if !ok || d >= base {
			break
		}
		v = v*base + d
		n++
	}
	return v, n
}

func digitValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
