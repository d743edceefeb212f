package patch

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

// NoNewlineMarker follows a diff line that has no trailing newline.
const NoNewlineMarker = `\ No newline at end of file`

// ErrTooManyLines is returned by Generate when the inputs hold more distinct
// lines than the line encoding can represent.
var ErrTooManyLines = errors.New("patch: too many distinct lines")

// Op tags a hunk line.
type Op byte

const (
	OpContext Op = ' '
	OpRemove  Op = '-'
	OpAdd     Op = '+'
)

// Line is one tagged line of a hunk. Text keeps its newline, if any.
type Line struct {
	Op   Op
	Text string
}

// Hunk is a contiguous region of change.
//
// OldStart and NewStart are the numbers printed in the hunk header: the
// 1-based first line of the range, or the line preceding the range when its
// count is 0.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Lines              []Line
}

// Diff is a unified diff: two file identifiers and ordered hunks.
// The identifiers are kept for compatibility with standard tools and carry
// no meaning for patching.
type Diff struct {
	OldName string
	NewName string
	Hunks   []Hunk
}

// Empty reports whether the diff holds no change.
func (d *Diff) Empty() bool {
	return d == nil || len(d.Hunks) == 0
}

// Bytes returns the unified diff text. A diff without hunks is empty.
func (d *Diff) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = d.WriteTo(&buf)
	return buf.Bytes()
}

func (d *Diff) String() string {
	return string(d.Bytes())
}

// WriteTo writes the unified diff text to w.
func (d *Diff) WriteTo(w io.Writer) (int64, error) {
	if d.Empty() {
		return 0, nil
	}

	var buf bytes.Buffer
	buf.WriteString("--- " + d.OldName + "\n")
	buf.WriteString("+++ " + d.NewName + "\n")
	for i := range d.Hunks {
		d.Hunks[i].writeTo(&buf)
	}
	return buf.WriteTo(w)
}

func (h *Hunk) writeTo(buf *bytes.Buffer) {
	buf.WriteString("@@ -")
	buf.WriteString(formatRange(h.OldStart, h.OldCount))
	buf.WriteString(" +")
	buf.WriteString(formatRange(h.NewStart, h.NewCount))
	buf.WriteString(" @@\n")

	for _, l := range h.Lines {
		buf.WriteByte(byte(l.Op))
		buf.WriteString(l.Text)
		if !hasNewline(l.Text) {
			buf.WriteString("\n" + NoNewlineMarker + "\n")
		}
	}
}

// formatRange renders a hunk range the GNU way: the count is omitted when
// it is 1.
func formatRange(start, count int) string {
	if count == 1 {
		return strconv.Itoa(start)
	}
	return strconv.Itoa(start) + "," + strconv.Itoa(count)
}

type options struct {
	context int
	oldName string
	newName string
	timeout time.Duration
}

// Option configures Generate.
type Option func(*options)

// WithContext sets the number of unchanged lines kept around each change.
func WithContext(n int) Option {
	return func(o *options) {
		o.context = max(0, n)
	}
}

// WithNames sets the file identifiers of the diff.
func WithNames(oldName, newName string) Option {
	return func(o *options) {
		o.oldName = oldName
		o.newName = newName
	}
}

// WithTimeout bounds the time spent looking for a minimal diff. Past it the
// diff is still correct but may be larger. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Generate computes the line diff turning original into edited.
// Lines keep their terminators, as returned by SplitLines.
func Generate(original, edited []string, opts ...Option) (*Diff, error) {
	o := options{
		context: DefaultContext,
		oldName: "original",
		newName: "edited",
		timeout: time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	edits, err := editScript(original, edited, o.timeout)
	if err != nil {
		return nil, err
	}

	return &Diff{
		OldName: o.oldName,
		NewName: o.newName,
		Hunks:   groupHunks(edits, o.context),
	}, nil
}

// ShouldSendDiff reports whether sending d is cheaper than sending the
// edited content of editedSize bytes. Ties favour the full content.
func ShouldSendDiff(d *Diff, editedSize int64) bool {
	return int64(len(d.Bytes())) < editedSize
}

// editScript returns the line edits turning a into b.
//
// Each distinct line is mapped to one rune so the character diff of
// diffmatchpatch runs on lines.
func editScript(a, b []string, timeout time.Duration) ([]Line, error) {
	enc := newLineEncoder()
	ra, err := enc.encode(a)
	if err != nil {
		return nil, err
	}
	rb, err := enc.encode(b)
	if err != nil {
		return nil, err
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = timeout

	var edits []Line
	for _, d := range dmp.DiffMainRunes(ra, rb, false) {
		op := OpContext
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = OpRemove
		case diffmatchpatch.DiffInsert:
			op = OpAdd
		}
		for _, r := range d.Text {
			edits = append(edits, Line{Op: op, Text: enc.line(r)})
		}
	}
	return edits, nil
}

const (
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF
	maxRune      = 0x10FFFF
)

// lineEncoder assigns a distinct valid rune to every distinct line.
type lineEncoder struct {
	ids   map[string]rune
	lines []string
	next  rune
}

func newLineEncoder() *lineEncoder {
	return &lineEncoder{ids: make(map[string]rune)}
}

func (e *lineEncoder) encode(lines []string) ([]rune, error) {
	out := make([]rune, len(lines))
	for i, l := range lines {
		r, ok := e.ids[l]
		if !ok {
			if e.next > maxRune {
				return nil, ErrTooManyLines
			}
			r = e.next
			e.ids[l] = r
			e.lines = append(e.lines, l)
			e.next++
			if e.next == surrogateMin {
				e.next = surrogateMax + 1
			}
		}
		out[i] = r
	}
	return out, nil
}

func (e *lineEncoder) line(r rune) string {
	i := int(r)
	if r > surrogateMax {
		i -= surrogateMax - surrogateMin + 1
	}
	return e.lines[i]
}

// groupHunks splits an edit script into hunks with ctx lines of context.
// Changes separated by at most 2*ctx unchanged lines share a hunk.
func groupHunks(edits []Line, ctx int) []Hunk {
	// oldPos[k] and newPos[k] count the lines before edit k
	oldPos := make([]int, len(edits)+1)
	newPos := make([]int, len(edits)+1)
	for k, e := range edits {
		oldPos[k+1], newPos[k+1] = oldPos[k], newPos[k]
		if e.Op != OpAdd {
			oldPos[k+1]++
		}
		if e.Op != OpRemove {
			newPos[k+1]++
		}
	}

	var hunks []Hunk
	n := len(edits)
	for i := 0; i < n; {
		for i < n && edits[i].Op == OpContext {
			i++
		}
		if i == n {
			break
		}

		start := max(0, i-ctx)
		end := i
		for {
			for end < n && edits[end].Op != OpContext {
				end++
			}
			run := end
			for run < n && edits[run].Op == OpContext {
				run++
			}
			if run < n && run-end <= 2*ctx {
				end = run
				continue
			}
			break
		}
		stop := min(n, end+ctx)

		h := Hunk{
			OldCount: oldPos[stop] - oldPos[start],
			NewCount: newPos[stop] - newPos[start],
			Lines:    append([]Line(nil), edits[start:stop]...),
		}
		h.OldStart = rangeStart(oldPos[start], h.OldCount)
		h.NewStart = rangeStart(newPos[start], h.NewCount)
		hunks = append(hunks, h)

		i = stop
	}
	return hunks
}

// rangeStart converts a 0-based offset to the number printed in a hunk
// header.
func rangeStart(offset, count int) int {
	if count == 0 {
		return offset
	}
	return offset + 1
}
