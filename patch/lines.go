package patch

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// SplitLines splits s into lines that keep their "\n" terminator.
// The last line has no terminator when s does not end with a newline.
// An empty s has no lines.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// ReadLines reads r to the end and splits it like SplitLines.
func ReadLines(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func hasNewline(line string) bool {
	return strings.HasSuffix(line, "\n")
}
