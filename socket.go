package sshed

import (
	"os"
	"path/filepath"
)

// SocketEnv is the environment variable naming the agent socket.
const SocketEnv = "SSHED_SOCK"

// SocketName is the socket file created inside an agent directory.
const SocketName = "socket"

// FindSocket resolves the agent socket to use.
//
// addr takes precedence over $SSHED_SOCK. A directory stands for the socket
// file inside it. The result must be a socket owned by the current user
// with permissions exactly 0600.
//
// Returns ErrNoSocket when nothing is configured and *SocketError when the
// path cannot be trusted.
func FindSocket(addr string, getenv func(string) string) (string, error) {
	if addr == "" {
		addr = getenv(SocketEnv)
	}
	if addr == "" {
		return "", ErrNoSocket
	}

	info, err := os.Stat(addr)
	if err != nil {
		return "", &SocketError{Path: addr, Reason: "does not exist"}
	}
	if info.IsDir() {
		addr = filepath.Join(addr, SocketName)
		if info, err = os.Stat(addr); err != nil {
			return "", &SocketError{Path: addr, Reason: "directory holds no socket"}
		}
	}

	if info.Mode()&os.ModeSocket == 0 {
		return "", &SocketError{Path: addr, Reason: "not a socket"}
	}
	if !ownedByCurrentUser(info) {
		return "", &SocketError{Path: addr, Reason: "not owned by the current user"}
	}
	if info.Mode().Perm() != 0o600 {
		return "", &SocketError{Path: addr, Reason: "access is too permissive"}
	}
	return addr, nil
}
