package patch

import (
	"regexp"
	"strconv"
	"strings"
)

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ParseDiff parses unified diff text.
func ParseDiff(data []byte) (*Diff, error) {
	return parse(SplitLines(string(data)))
}

// ParseHunks parses the lines of a unified diff into hunks.
//
// Lines before the first hunk header are ignored. Lines starting with "---"
// or "+++" are file identifiers unless they fall within the line counts
// declared by the open hunk. A "\" line strips the newline of the hunk line
// before it. A diff without "@@" has no hunks.
//
// Returns *MalformedDiffError for bad hunk headers and unknown line prefixes.
func ParseHunks(lines []string) ([]Hunk, error) {
	d, err := parse(lines)
	if err != nil {
		return nil, err
	}
	return d.Hunks, nil
}

func parse(lines []string) (*Diff, error) {
	d := &Diff{}
	var cur *Hunk
	var oldLeft, newLeft int

	for i, raw := range lines {
		lineno := i + 1
		inCounts := cur != nil && (oldLeft > 0 || newLeft > 0)

		switch {
		case strings.HasPrefix(raw, `\`):
			if cur == nil {
				continue
			}
			if len(cur.Lines) == 0 {
				return nil, &MalformedDiffError{Line: lineno, Reason: "newline marker before any hunk line"}
			}
			last := &cur.Lines[len(cur.Lines)-1]
			last.Text = strings.TrimSuffix(last.Text, "\n")
			continue

		case !inCounts && strings.HasPrefix(raw, "---"):
			d.OldName = fileName(raw)
			continue

		case !inCounts && strings.HasPrefix(raw, "+++"):
			d.NewName = fileName(raw)
			continue

		case strings.HasPrefix(raw, "@@"):
			h, err := parseHunkHeader(raw)
			if err != nil {
				return nil, &MalformedDiffError{Line: lineno, Got: raw, Reason: err.Error()}
			}
			d.Hunks = append(d.Hunks, h)
			cur = &d.Hunks[len(d.Hunks)-1]
			oldLeft, newLeft = h.OldCount, h.NewCount
			continue

		case cur == nil:
			// preamble
			continue
		}

		l, ok := parseLine(raw)
		if !ok {
			return nil, &MalformedDiffError{Line: lineno, Got: raw, Reason: "unknown line prefix"}
		}
		cur.Lines = append(cur.Lines, l)
		if l.Op != OpAdd {
			oldLeft--
		}
		if l.Op != OpRemove {
			newLeft--
		}
	}

	return d, nil
}

func parseHunkHeader(line string) (Hunk, error) {
	m := hunkHeader.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, errInvalidHunkHeader
	}

	var h Hunk
	var err error
	if h.OldStart, err = strconv.Atoi(m[1]); err != nil {
		return Hunk{}, errInvalidHunkHeader
	}
	if h.OldCount, err = parseCount(m[2]); err != nil {
		return Hunk{}, errInvalidHunkHeader
	}
	if h.NewStart, err = strconv.Atoi(m[3]); err != nil {
		return Hunk{}, errInvalidHunkHeader
	}
	if h.NewCount, err = parseCount(m[4]); err != nil {
		return Hunk{}, errInvalidHunkHeader
	}
	return h, nil
}

// parseCount parses an optional range count, which defaults to 1.
func parseCount(s string) (int, error) {
	if s == "" {
		return 1, nil
	}
	return strconv.Atoi(s)
}

func parseLine(raw string) (Line, bool) {
	if raw == "\n" {
		// Some tools strip the space of empty context lines
		return Line{Op: OpContext, Text: "\n"}, true
	}
	if raw == "" {
		return Line{}, false
	}
	switch op := Op(raw[0]); op {
	case OpContext, OpRemove, OpAdd:
		return Line{Op: op, Text: raw[1:]}, true
	}
	return Line{}, false
}

// fileName extracts the identifier of a "---" or "+++" line, dropping the
// optional tab-separated timestamp.
func fileName(raw string) string {
	name := strings.TrimRight(raw[3:], "\n")
	name = strings.TrimPrefix(name, " ")
	if i := strings.IndexByte(name, '\t'); i >= 0 {
		name = name[:i]
	}
	return name
}
