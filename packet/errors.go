package packet

import (
	"errors"
	"fmt"
)

// Error types for packet operations.
// They tell the caller whether the connection is still usable and let it
// tell a clean end of session apart from data corruption.

// ErrLimitExceeded is returned by StreamBuffer.ReadUntilLimit when the
// delimiter was not found within the allowed number of bytes.
var ErrLimitExceeded = errors.New("packet: delimiter not found within limit")

// ConnectionClosedError is returned when the peer closed the stream before a
// framing operation (header terminator or exact-length body) completed.
//
// At the session layer this is the expected signal that the session is over.
// It is not an anomaly and should not be logged as an error when it happens
// right after a completed exchange.
//
// Connection handling: connection is gone, CLOSE it
type ConnectionClosedError struct {
	Op       string // Operation that was interrupted (read, write)
	Buffered int    // Bytes that had been accumulated and were discarded
	Err      error  // Underlying error (io.EOF, net.ErrClosed, ...)
}

func (e *ConnectionClosedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("packet: connection closed during %s: %v", e.Op, e.Err)
	}
	return "packet: connection closed during " + e.Op
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionClosedError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the stream has ended
func (e *ConnectionClosedError) ShouldCloseConnection() bool {
	return true
}

// ConnectionError wraps I/O errors that are not a plain end of stream
// (timeouts, resets on some platforms, ...).
//
// Connection handling: connection is broken, CLOSE it
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("packet: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// MalformedPacketError is returned when the header block does not parse into
// name/contents pairs, or when a reserved header has the wrong type.
//
// Common causes:
//   - Header line without a colon
//   - Empty header name
//   - Duplicate header name
//   - Size header that is not a non-negative integer
//   - Missing Version header
//   - Header block larger than MaxHeaderBytes
//
// Connection handling: framing is lost, CLOSE connection
type MalformedPacketError struct {
	Message string
	Line    string // Offending header line, if any
	Err     error
}

func (e *MalformedPacketError) Error() string {
	msg := "packet: malformed packet: " + e.Message
	if e.Line != "" {
		msg += fmt.Sprintf(" (line %q)", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedPacketError) Unwrap() error {
	return e.Err
}

func (e *MalformedPacketError) ShouldCloseConnection() bool {
	return true
}

// UnknownVersionError is returned when the Version header names a protocol
// version outside the accepted set. The connection must be dropped without
// reading anything further.
type UnknownVersionError struct {
	Version Value
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("packet: unknown protocol version %s", e.Version.GoString())
}

func (e *UnknownVersionError) ShouldCloseConnection() bool {
	return true
}

// EncodeError is returned when a header cannot be represented on the wire.
// Nothing has been written when it is returned, so the connection is still
// usable.
type EncodeError struct {
	Name    string
	Message string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("packet: cannot encode header %q: %s", e.Name, e.Message)
}

func (e *EncodeError) ShouldCloseConnection() bool {
	return false
}

// ErrorWithConnectionState is implemented by all packet error types.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns false for nil and EncodeError, true for every other error,
// including unknown ones.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}

// IsConnectionClosed reports whether err means the peer ended the stream.
func IsConnectionClosed(err error) bool {
	var e *ConnectionClosedError
	return errors.As(err, &e)
}

// IsMalformed reports whether err is a MalformedPacketError.
func IsMalformed(err error) bool {
	var e *MalformedPacketError
	return errors.As(err, &e)
}
