package patch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	errInvalidHunkHeader = errors.New("invalid hunk header")

	// ErrPatcherUsed is returned when Patch is called twice on one Patcher.
	ErrPatcherUsed = errors.New("patch: patcher already used")
)

// MalformedDiffError is returned when a diff does not parse, or does not
// apply to the original it is patched against. Nothing written by a failed
// Patch may be committed.
type MalformedDiffError struct {
	Line   int    // 1-based line of the original, or of the diff text when parsing
	Want   string // line expected by the diff
	Got    string // line found
	Reason string
}

func (e *MalformedDiffError) Error() string {
	msg := fmt.Sprintf("patch: malformed diff at line %d: %s", e.Line, e.Reason)
	if e.Want != "" || e.Got != "" {
		msg += fmt.Sprintf(" (want %q, got %q)", e.Want, e.Got)
	}
	return msg
}

// IsMalformed reports whether err is a MalformedDiffError.
func IsMalformed(err error) bool {
	var e *MalformedDiffError
	return errors.As(err, &e)
}

// Patcher applies hunks to an original read as a stream.
// It holds a read cursor into the original and is used once.
type Patcher struct {
	original *bufio.Reader
	hunks    []Hunk
	line     int // original lines consumed
	used     bool
}

// NewPatcher returns a Patcher applying hunks to original.
func NewPatcher(original io.Reader, hunks []Hunk) *Patcher {
	return &Patcher{
		original: bufio.NewReader(original),
		hunks:    hunks,
	}
}

// Patch writes the patched content to w.
//
// For each hunk the untouched original lines before it are copied, context
// lines are verified and copied, removed lines are verified and skipped and
// added lines are written. The rest of the original follows the last hunk.
//
// Returns *MalformedDiffError on a line mismatch, a hunk starting before the
// end of the previous one, or an original that ends too early. The output is
// incomplete in that case.
func (p *Patcher) Patch(w io.Writer) error {
	if p.used {
		return ErrPatcherUsed
	}
	p.used = true

	bw := bufio.NewWriter(w)

	for i := range p.hunks {
		if err := p.apply(bw, &p.hunks[i]); err != nil {
			return err
		}
	}

	if _, err := io.Copy(bw, p.original); err != nil {
		return fmt.Errorf("patch: copying original: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("patch: writing output: %w", err)
	}
	return nil
}

func (p *Patcher) apply(bw *bufio.Writer, h *Hunk) error {
	target := h.OldStart
	if h.OldCount == 0 {
		target++
	}
	if target-1 < p.line {
		return &MalformedDiffError{
			Line:   p.line,
			Reason: fmt.Sprintf("hunk at line %d starts before the end of the previous hunk", h.OldStart),
		}
	}

	for p.line < target-1 {
		line, err := p.next()
		if err != nil {
			return err
		}
		if line == "" {
			return &MalformedDiffError{
				Line:   p.line + 1,
				Reason: fmt.Sprintf("original ends before hunk at line %d", h.OldStart),
			}
		}
		bw.WriteString(line)
	}

	for _, l := range h.Lines {
		if l.Op == OpAdd {
			bw.WriteString(l.Text)
			continue
		}

		line, err := p.next()
		if err != nil {
			return err
		}
		if line == "" {
			return &MalformedDiffError{Line: p.line, Want: l.Text, Reason: "original ends inside hunk"}
		}
		if line != l.Text {
			reason := "context line mismatch"
			if l.Op == OpRemove {
				reason = "removed line mismatch"
			}
			return &MalformedDiffError{Line: p.line, Want: l.Text, Got: line, Reason: reason}
		}
		if l.Op == OpContext {
			bw.WriteString(line)
		}
	}
	return nil
}

// next returns the next original line, or "" at the end of the original.
func (p *Patcher) next() (string, error) {
	line, err := p.original.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("patch: reading original: %w", err)
	}
	if line != "" {
		p.line++
	}
	return line, nil
}

// ApplyLines applies hunks to original lines and returns the patched lines.
func ApplyLines(original []string, hunks []Hunk) ([]string, error) {
	var out strings.Builder
	p := NewPatcher(strings.NewReader(strings.Join(original, "")), hunks)
	if err := p.Patch(&out); err != nil {
		return nil, err
	}
	return SplitLines(out.String()), nil
}
