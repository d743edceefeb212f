package sshed

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// shortTempDir returns a temporary directory with a path short enough for
// Unix socket addresses.
func shortTempDir(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sshed")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// startAgent serves an agent until the end of the test and returns it with
// its socket path.
func startAgent(t testing.TB, config AgentConfig) (*Agent, string) {
	t.Helper()

	if config.TempDir == "" {
		config.TempDir = shortTempDir(t)
	}
	agent, err := NewAgent(config)
	require.NoError(t, err)

	l, err := agent.Listen("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Serve(ctx, l) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("agent did not stop")
		}
		require.NoError(t, agent.Close())
	})

	return agent, l.Addr().String()
}

// listenSocket creates a listener at a trusted socket path, for fake agents.
func listenSocket(t testing.TB) (*net.UnixListener, string) {
	t.Helper()
	path := filepath.Join(shortTempDir(t), SocketName)
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	require.NoError(t, os.Chmod(path, 0o600))
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

// settledStats waits for n sessions to be over and returns the agent stats.
func settledStats(t testing.TB, agent *Agent, n uint64) AgentStats {
	t.Helper()
	require.Eventually(t, func() bool {
		return agent.Stats().Sessions >= n
	}, 2*time.Second, 5*time.Millisecond)
	return agent.Stats()
}

func writeFile(t testing.TB, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func readFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// replaceWith returns an editor writing content over the edited file.
func replaceWith(content string) EditorFunc {
	return func(ctx context.Context, path string) error {
		return os.WriteFile(path, []byte(content), 0o600)
	}
}

func noEdit(context.Context, string) error { return nil }
