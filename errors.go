package sshed

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSocket is returned when no agent socket is configured.
	ErrNoSocket = errors.New("sshed: no agent socket (set SSHED_SOCK or pass an address)")

	// ErrAgentUnavailable is returned when the agent cannot be reached before
	// any exchange began. The file was not touched and editing it locally is
	// safe.
	ErrAgentUnavailable = errors.New("sshed: agent unavailable")

	// ErrAgentClosed is returned by Serve once the agent has been closed.
	ErrAgentClosed = errors.New("sshed: agent closed")
)

// SocketError describes why a socket path cannot be trusted.
type SocketError struct {
	Path   string
	Reason string
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("sshed: socket %s: %s", e.Path, e.Reason)
}

// ChecksumError is returned when reconstructed content does not match what
// the agent announced. The original file is left untouched.
type ChecksumError struct {
	Name         string
	WantSize     int64
	GotSize      int64
	WantChecksum string
	GotChecksum  string
}

func (e *ChecksumError) Error() string {
	if e.WantSize != e.GotSize {
		return fmt.Sprintf("sshed: %s: size mismatch (want %d bytes, got %d)", e.Name, e.WantSize, e.GotSize)
	}
	return fmt.Sprintf("sshed: %s: checksum mismatch (want %s, got %s)", e.Name, e.WantChecksum, e.GotChecksum)
}

// CommitError is returned when writing the verified content over the file
// failed after it was truncated. The file may be partially written; the
// content is kept in the staging file.
type CommitError struct {
	Name    string
	Staging string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("sshed: writing %s: %v (content kept in %s)", e.Name, e.Err, e.Staging)
}

func (e *CommitError) Unwrap() error { return e.Err }

// IsChecksumMismatch reports whether err is a ChecksumError.
func IsChecksumMismatch(err error) bool {
	var e *ChecksumError
	return errors.As(err, &e)
}
