package sshed

import (
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// AgentConfig holds configuration for the agent serving edit sessions.
type AgentConfig struct {
	// MaxSessions is the maximum number of concurrent sessions. Connections
	// beyond it wait in the listener backlog.
	// Zero means DefaultMaxSessions.
	MaxSessions int32

	// Editor edits the working copy of each session.
	// If nil, the editor is chosen from the environment with ChooseEditor.
	Editor Editor

	// TempDir is the parent directory of session and socket directories.
	// Empty means os.TempDir().
	TempDir string

	// DiffContext is the number of unchanged lines around each change in
	// diffs sent to guests.
	// Zero means patch.DefaultContext.
	DiffContext int

	// DiffTimeout bounds the search for a minimal diff.
	// Zero means one second.
	DiffTimeout time.Duration

	// IOTimeout bounds each receive and send of a session. The editor run
	// is not bounded.
	// Zero means no limit.
	IOTimeout time.Duration

	// Logger receives session logs.
	// If nil, logs are discarded.
	Logger *zap.SugaredLogger
}

// GuestConfig holds configuration for the guest side of an edit.
type GuestConfig struct {
	// Socket is the agent socket, or the directory holding it.
	// Empty means $SSHED_SOCK.
	Socket string

	// FullContent asks the agent to always send the whole edited file back
	// instead of a diff.
	FullContent bool

	// DialTimeout bounds the connection to the agent.
	// Zero means no limit.
	DialTimeout time.Duration

	// LocalEditor edits the file when the agent is unavailable.
	// If nil, the editor is chosen from the environment with ChooseEditor.
	LocalEditor Editor

	// NoFallback makes Edit return ErrAgentUnavailable instead of running
	// the local editor.
	NoFallback bool

	// NewCircuitBreaker creates the circuit breaker guarding dials to the
	// agent socket. Called once per socket path.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(socket string) *gobreaker.CircuitBreaker[net.Conn]

	// Logger receives guest logs.
	// If nil, logs are discarded.
	Logger *zap.SugaredLogger

	// for testing purposes only
	getenv func(string) string
}
