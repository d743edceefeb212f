package sshed

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(name string) string { return vars[name] }
}

func lookPathOf(found ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, f := range found {
			if f == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestChooseEditor(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		found []string
		want  []string
		err   error
	}{
		{
			name: "editor",
			env:  map[string]string{"EDITOR": "vim", "VISUAL": "code"},
			want: []string{"vim"},
		},
		{
			name: "editor with arguments",
			env:  map[string]string{"EDITOR": "emacs -nw"},
			want: []string{"emacs", "-nw"},
		},
		{
			name: "visual",
			env:  map[string]string{"VISUAL": "code --wait"},
			want: []string{"code", "--wait"},
		},
		{
			name: "sudo editor",
			env:  map[string]string{"SUDO_EDITOR": "vi"},
			want: []string{"vi"},
		},
		{
			name: "skips sshed itself",
			env:  map[string]string{"EDITOR": "/usr/local/bin/sshed", "VISUAL": "vim"},
			want: []string{"vim"},
		},
		{
			name:  "blank variable",
			env:   map[string]string{"EDITOR": "  "},
			found: []string{"nano"},
			want:  []string{"/usr/bin/nano"},
		},
		{
			name:  "sensible editor first",
			found: []string{"sensible-editor", "xdg-open", "nano", "ed"},
			want:  []string{"/usr/bin/sensible-editor"},
		},
		{
			name:  "xdg-open outside a graphical session",
			found: []string{"xdg-open", "ed"},
			want:  []string{"/usr/bin/ed"},
		},
		{
			name:  "xdg-open in a graphical session",
			env:   map[string]string{"DISPLAY": ":0"},
			found: []string{"xdg-open", "ed"},
			want:  []string{"/usr/bin/xdg-open"},
		},
		{
			name: "nothing",
			env:  map[string]string{"EDITOR": "sshed"},
			err:  ErrNoEditor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChooseEditor(envOf(tt.env), lookPathOf(tt.found...))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGraphicalSession(t *testing.T) {
	assert.False(t, GraphicalSession(envOf(nil)))
	assert.True(t, GraphicalSession(envOf(map[string]string{"DISPLAY": ":1"})))
	assert.True(t, GraphicalSession(envOf(map[string]string{"WAYLAND_DISPLAY": "wayland-0"})))
	assert.True(t, GraphicalSession(envOf(map[string]string{"TERM_PROGRAM": "Apple_Terminal"})))
}

func TestExecEditor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("before\n"), 0o600))

	var stderr bytes.Buffer
	editor := &ExecEditor{
		Argv:   []string{"sh", "-c", `echo after > "$1"; echo edited "$1" >&2`, "sh"},
		Stderr: &stderr,
	}
	require.NoError(t, editor.Edit(context.Background(), path))

	assert.Equal(t, "after\n", readFile(t, path))
	assert.Equal(t, "edited "+path+"\n", stderr.String())
}

func TestExecEditor_Failure(t *testing.T) {
	editor := &ExecEditor{Argv: []string{"sh", "-c", "exit 3", "sh"}, Stderr: &bytes.Buffer{}}
	err := editor.Edit(context.Background(), "file")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "editor sh")
}

func TestExecEditor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	editor := &ExecEditor{Argv: []string{"sleep", "10"}}
	assert.Error(t, editor.Edit(ctx, "file"))
}

func TestExecEditor_Empty(t *testing.T) {
	assert.ErrorIs(t, (&ExecEditor{}).Edit(context.Background(), "file"), ErrNoEditor)
}
