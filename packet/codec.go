package packet

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	newlineBytes    = []byte(Newline)
	terminatorBytes = []byte(HeaderTerminator)
)

// EncodeHeaderLine renders one header as a wire line, newline included.
//
// Format: <name>: <contents>\n
//
// Names and String contents are wrapped in double quotes when they would not
// read back unchanged otherwise:
//   - name: edge whitespace, a colon, or a leading quote
//   - String: edge whitespace, wrapped in quotes, or text that would decode
//     as an Integer, Float or Boolean (e.g. "255", "True")
//
// Returns *EncodeError for names that are empty, contain a newline or a quote
// followed by a colon, and for Strings containing a newline.
func EncodeHeaderLine(name string, v Value) (string, error) {
	n, err := encodeName(name)
	if err != nil {
		return "", err
	}
	c, err := encodeContents(name, v)
	if err != nil {
		return "", err
	}
	return n + ": " + c + Newline, nil
}

// EncodeHeaders appends the header block of h to buf: one line per header in
// insertion order, then the blank line ending the block. An empty set
// encodes as a single newline.
//
// On error buf is left as it was.
func EncodeHeaders(buf *bytes.Buffer, h *Headers) error {
	mark := buf.Len()
	for name, v := range h.All() {
		line, err := EncodeHeaderLine(name, v)
		if err != nil {
			buf.Truncate(mark)
			return err
		}
		buf.WriteString(line)
	}
	buf.WriteString(Newline)
	return nil
}

func encodeName(name string) (string, error) {
	switch {
	case name == "":
		return "", &EncodeError{Name: name, Message: "empty name"}
	case strings.Contains(name, Newline):
		return "", &EncodeError{Name: name, Message: "name contains a newline"}
	case quotedColon(name, 0) >= 0:
		return "", &EncodeError{Name: name, Message: "name contains a quote followed by a colon"}
	}

	if strings.TrimSpace(name) != name ||
		strings.IndexByte(name, Separator) >= 0 ||
		name[0] == Quote {
		return quote(name), nil
	}
	return name, nil
}

func encodeContents(name string, v Value) (string, error) {
	if v.Kind() != KindString {
		return v.String(), nil
	}

	s := v.s
	if strings.Contains(s, Newline) {
		return "", &EncodeError{Name: name, Message: "value contains a newline"}
	}
	if strings.TrimSpace(s) != s || isQuoted(s) || coerce(s).Kind() != KindString {
		return quote(s), nil
	}
	return s, nil
}

// DecodeHeaders parses a header block: lines of "name: contents" separated by
// newlines. The blank line ending the block may be present or not.
//
// Returns *MalformedPacketError when a line has no separator, an empty name,
// or repeats a name already seen.
func DecodeHeaders(block []byte) (*Headers, error) {
	h := &Headers{}

	block = bytes.TrimRight(block, Newline)
	if len(block) == 0 {
		return h, nil
	}

	for raw := range bytes.SplitSeq(block, newlineBytes) {
		line := string(raw)

		name, contents, ok := splitHeaderLine(line)
		if !ok {
			return nil, &MalformedPacketError{Message: "header line without separator", Line: line}
		}

		name = unquote(strings.TrimSpace(name))
		if name == "" {
			return nil, &MalformedPacketError{Message: "empty header name", Line: line}
		}
		if h.Has(name) {
			return nil, &MalformedPacketError{Message: "duplicate header " + strconv.Quote(name), Line: line}
		}

		h.Set(name, coerce(strings.TrimSpace(contents)))
	}

	return h, nil
}

// ReadHeaders reads one header block from sb, blank line included, and
// decodes it. The body, if any, is left in sb.
//
// Errors:
//   - *ConnectionClosedError: the stream ended before the blank line
//   - *MalformedPacketError: the block does not decode, or exceeds
//     MaxHeaderBytes
func ReadHeaders(sb *StreamBuffer) (*Headers, error) {
	first, err := sb.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] == Newline[0] {
		sb.Discard(1)
		return &Headers{}, nil
	}

	block, err := sb.ReadUntilLimit(terminatorBytes, MaxHeaderBytes)
	if errors.Is(err, ErrLimitExceeded) {
		return nil, &MalformedPacketError{
			Message: fmt.Sprintf("header block larger than %d bytes", MaxHeaderBytes),
			Err:     err,
		}
	}
	if err != nil {
		return nil, err
	}

	return DecodeHeaders(block)
}

// splitHeaderLine splits a line at its separator.
// A line whose name starts with a quote splits at the first colon that
// follows a quote (whitespace allowed in between), so a quoted name may hold
// colons. Otherwise, and when no such colon exists, it splits at the first
// colon.
func splitHeaderLine(line string) (name, contents string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t\r\v\f")
	if len(trimmed) > 0 && trimmed[0] == Quote {
		if i := quotedColon(trimmed, 1); i >= 0 {
			return trimmed[:i], trimmed[i+1:], true
		}
	}

	i := strings.IndexByte(line, Separator)
	if i < 0 {
		return "", "", false
	}
	return line[:i], line[i+1:], true
}

// quotedColon returns the index of the first colon preceded by a quote and
// optional blanks, looking from start, or -1.
func quotedColon(s string, start int) int {
	for i := start; i < len(s); i++ {
		if s[i] != Quote {
			continue
		}
		j := i + 1
		for j < len(s) && isBlank(s[j]) {
			j++
		}
		if j < len(s) && s[j] == Separator {
			return j
		}
	}
	return -1
}

func isBlank(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\v', '\f':
		return true
	}
	return false
}

// floatLiteral matches decimal float syntax and the special values. Hex
// floats and digit separators, which strconv.ParseFloat also accepts, are
// not float literals on the wire.
var floatLiteral = regexp.MustCompile(`^[+-]?(?:(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?|(?i:inf|infinity|nan))$`)

// coerce turns trimmed header contents into a Value.
// First match wins: Integer, Float, Boolean, quoted String, bare String.
//
// Integers beyond int64 read as Float. Decimal literals beyond float64 read
// as an infinite Float.
func coerce(s string) Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if floatLiteral.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return Float(f)
		}
	}
	switch s {
	case literalTrue:
		return Bool(true)
	case literalFalse:
		return Bool(false)
	}
	return String(unquote(s))
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == Quote && s[len(s)-1] == Quote
}

func quote(s string) string {
	return string(Quote) + s + string(Quote)
}

func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}
