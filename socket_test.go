package sshed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSocket(t *testing.T) {
	_, socket := listenSocket(t)
	dir := filepath.Dir(socket)

	t.Run("address", func(t *testing.T) {
		got, err := FindSocket(socket, envOf(nil))
		require.NoError(t, err)
		assert.Equal(t, socket, got)
	})

	t.Run("directory", func(t *testing.T) {
		got, err := FindSocket(dir, envOf(nil))
		require.NoError(t, err)
		assert.Equal(t, socket, got)
	})

	t.Run("environment", func(t *testing.T) {
		got, err := FindSocket("", envOf(map[string]string{SocketEnv: dir}))
		require.NoError(t, err)
		assert.Equal(t, socket, got)
	})

	t.Run("address wins over environment", func(t *testing.T) {
		got, err := FindSocket(socket, envOf(map[string]string{SocketEnv: "/nonexistent"}))
		require.NoError(t, err)
		assert.Equal(t, socket, got)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := FindSocket("", envOf(nil))
		assert.ErrorIs(t, err, ErrNoSocket)
	})
}

func TestFindSocket_Untrusted(t *testing.T) {
	regular := filepath.Join(t.TempDir(), "regular")
	require.NoError(t, os.WriteFile(regular, nil, 0o600))

	_, open := listenSocket(t)
	require.NoError(t, os.Chmod(open, 0o666))

	tests := []struct {
		name   string
		addr   string
		reason string
	}{
		{"missing", filepath.Join(t.TempDir(), "nope"), "does not exist"},
		{"empty directory", t.TempDir(), "directory holds no socket"},
		{"regular file", regular, "not a socket"},
		{"permissive", open, "access is too permissive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FindSocket(tt.addr, envOf(nil))

			var sockErr *SocketError
			require.ErrorAs(t, err, &sockErr)
			assert.Equal(t, tt.reason, sockErr.Reason)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}
