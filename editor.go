package sshed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Editor opens a file for editing and returns once the user is done.
type Editor interface {
	Edit(ctx context.Context, path string) error
}

// EditorFunc adapts a function to the Editor interface.
type EditorFunc func(ctx context.Context, path string) error

func (f EditorFunc) Edit(ctx context.Context, path string) error {
	return f(ctx, path)
}

// ExecEditor runs an editor command with the file path appended.
type ExecEditor struct {
	// Argv is the editor command and its leading arguments.
	Argv []string

	// Stdin, Stdout and Stderr of the editor. Nil means the ones of the
	// current process.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ErrNoEditor is returned by ChooseEditor when no editor can be found.
var ErrNoEditor = errors.New("sshed: no editor found")

func (e *ExecEditor) Edit(ctx context.Context, path string) error {
	if len(e.Argv) == 0 {
		return ErrNoEditor
	}

	args := append(append([]string(nil), e.Argv[1:]...), path)
	cmd := exec.CommandContext(ctx, e.Argv[0], args...)
	cmd.Stdin = orDefault[io.Reader](e.Stdin, os.Stdin)
	cmd.Stdout = orDefault[io.Writer](e.Stdout, os.Stdout)
	cmd.Stderr = orDefault[io.Writer](e.Stderr, os.Stderr)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sshed: editor %s: %w", e.Argv[0], err)
	}
	return nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// editorVariables are consulted in order.
var editorVariables = []string{"EDITOR", "VISUAL", "SUDO_EDITOR"}

// fallbackEditors are looked up in PATH when no variable names a usable
// editor.
var fallbackEditors = []string{"sensible-editor", "xdg-open", "nano", "ed"}

// ChooseEditor returns the argv of the editor to use.
//
// EDITOR, VISUAL and SUDO_EDITOR are tried first, skipping values that point
// back at sshed itself. Then sensible-editor, xdg-open (only in a graphical
// session), nano and ed are looked up with lookPath.
func ChooseEditor(getenv func(string) string, lookPath func(string) (string, error)) ([]string, error) {
	for _, name := range editorVariables {
		argv := strings.Fields(getenv(name))
		if len(argv) == 0 {
			continue
		}
		if strings.Contains(filepath.Base(argv[0]), "sshed") {
			continue
		}
		return argv, nil
	}

	graphical := GraphicalSession(getenv)
	for _, name := range fallbackEditors {
		if name == "xdg-open" && !graphical {
			continue
		}
		if path, err := lookPath(name); err == nil {
			return []string{path}, nil
		}
	}
	return nil, ErrNoEditor
}

// GraphicalSession reports whether the environment belongs to a graphical
// session (X11, Wayland or macOS).
func GraphicalSession(getenv func(string) string) bool {
	for _, name := range []string{"DISPLAY", "WAYLAND_DISPLAY", "TERM_PROGRAM"} {
		if getenv(name) != "" {
			return true
		}
	}
	return false
}

// defaultEditor returns the ExecEditor chosen from the process environment.
func defaultEditor() (Editor, error) {
	argv, err := ChooseEditor(os.Getenv, exec.LookPath)
	if err != nil {
		return nil, err
	}
	return &ExecEditor{Argv: argv}, nil
}
