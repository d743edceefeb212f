package testutils

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// ConnectionMock is a mock implementation of net.Conn for testing.
//
// Reads are served chunk by chunk: a single Read never returns bytes from two
// chunks, so tests control exactly how the stream is fragmented. Once the
// chunks are exhausted Read returns the configured error (io.EOF by default).
type ConnectionMock struct {
	mu       sync.Mutex
	chunks   [][]byte
	readErr  error
	reads    int
	writeBuf bytes.Buffer
	writeErr error
	closed   bool
	deadline time.Time
}

// NewConnectionMock creates a mock connection serving the given chunks in
// order. An empty chunk is a (0, nil) read.
func NewConnectionMock(chunks ...string) *ConnectionMock {
	m := &ConnectionMock{readErr: io.EOF}
	for _, c := range chunks {
		m.chunks = append(m.chunks, []byte(c))
	}
	return m
}

// WithReadError sets the error returned once the chunks are exhausted.
func (m *ConnectionMock) WithReadError(err error) *ConnectionMock {
	m.readErr = err
	return m
}

// WithWriteError makes every Write fail with err.
func (m *ConnectionMock) WithWriteError(err error) *ConnectionMock {
	m.writeErr = err
	return m
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	m.reads++
	if len(m.chunks) == 0 {
		return 0, m.readErr
	}

	n := copy(b, m.chunks[0])
	if n == len(m.chunks[0]) {
		m.chunks = m.chunks[1:]
	} else {
		m.chunks[0] = m.chunks[0][n:]
	}
	return n, nil
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, net.ErrClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.UnixAddr{Name: "guest", Net: "unix"}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.UnixAddr{Name: "agent.sock", Net: "unix"}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadline = t
	return nil
}

func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return m.SetDeadline(t) }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return m.SetDeadline(t) }

// Written returns the raw bytes written to the mock connection.
func (m *ConnectionMock) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}

// Reads returns the number of Read calls served.
func (m *ConnectionMock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Closed reports whether Close was called.
func (m *ConnectionMock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Deadline returns the last deadline set on the connection.
func (m *ConnectionMock) Deadline() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline
}
