package packet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// maxEmptyReads is the number of consecutive (0, nil) reads tolerated before
// giving up with io.ErrNoProgress, as bufio does.
const maxEmptyReads = 100

// StreamBuffer is an incremental reader over a byte stream.
//
// It accumulates the bytes of fixed-size reads (ReadSize) in a contiguous
// buffer and hands them out by exact length or up to a delimiter, issuing
// further reads when the buffered data is insufficient. Bytes read past the
// requested amount stay buffered for the next call.
//
// Once the stream has ended or failed, the buffered bytes are discarded and
// every later call returns the same error.
//
// A StreamBuffer is not safe for concurrent use.
type StreamBuffer struct {
	rd   io.Reader
	buf  []byte
	r, w int // unread bytes are buf[r:w]

	pending error // error returned alongside data by the last read
	err     error // sticky terminal error
}

// NewStreamBuffer returns a StreamBuffer reading from rd.
func NewStreamBuffer(rd io.Reader) *StreamBuffer {
	return &StreamBuffer{rd: rd}
}

// Buffered returns the number of bytes read from the stream but not yet
// consumed.
func (b *StreamBuffer) Buffered() int {
	return b.w - b.r
}

// Err returns the terminal error of the buffer, if any.
func (b *StreamBuffer) Err() error {
	return b.err
}

// Peek returns the next n bytes without consuming them. The returned slice
// is only valid until the next call on b.
func (b *StreamBuffer) Peek(n int) ([]byte, error) {
	for b.Buffered() < n {
		if err := b.fill(); err != nil {
			return nil, err
		}
	}
	return b.buf[b.r : b.r+n], nil
}

// Discard consumes up to n buffered bytes without reading from the stream
// and returns the number of bytes discarded.
func (b *StreamBuffer) Discard(n int) int {
	n = min(n, b.Buffered())
	b.r += n
	return n
}

// ReadExact returns exactly n bytes from the stream.
//
// When sink is not nil the bytes are written to it as they arrive instead of
// being materialised, and the returned slice is nil. A sink write error is
// returned wrapped; the bytes handed to the sink are consumed either way.
func (b *StreamBuffer) ReadExact(n int, sink io.Writer) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("packet: negative read length %d", n)
	}

	if sink != nil {
		for remaining := n; remaining > 0; {
			if b.Buffered() == 0 {
				if err := b.fill(); err != nil {
					return nil, err
				}
			}
			chunk := min(remaining, b.Buffered())
			_, err := sink.Write(b.buf[b.r : b.r+chunk])
			b.r += chunk
			remaining -= chunk
			if err != nil {
				return nil, fmt.Errorf("packet: writing to sink: %w", err)
			}
		}
		return nil, nil
	}

	for b.Buffered() < n {
		if err := b.fill(); err != nil {
			return nil, err
		}
	}
	out := make([]byte, n)
	copy(out, b.buf[b.r:b.r+n])
	b.r += n
	return out, nil
}

// ReadUntil returns the bytes up to, not including, the first occurrence of
// delim, and consumes the delimiter.
func (b *StreamBuffer) ReadUntil(delim []byte) ([]byte, error) {
	return b.ReadUntilLimit(delim, 0)
}

// ReadUntilLimit is ReadUntil with an upper bound on the length of the
// returned bytes. It returns ErrLimitExceeded when limit bytes have been
// buffered without finding delim. A limit <= 0 means no limit.
func (b *StreamBuffer) ReadUntilLimit(delim []byte, limit int) ([]byte, error) {
	if len(delim) == 0 {
		return nil, errors.New("packet: empty delimiter")
	}

	// searched is relative to b.r so it survives compaction in fill
	searched := 0
	for {
		if i := bytes.Index(b.buf[b.r+searched:b.w], delim); i >= 0 {
			end := b.r + searched + i
			if limit > 0 && end-b.r > limit {
				return nil, ErrLimitExceeded
			}
			out := bytes.Clone(b.buf[b.r:end])
			if out == nil {
				out = []byte{}
			}
			b.r = end + len(delim)
			return out, nil
		}

		if limit > 0 && b.Buffered() >= limit+len(delim) {
			return nil, ErrLimitExceeded
		}

		// The delimiter may straddle the boundary of the next read
		searched = max(0, b.Buffered()-len(delim)+1)
		if err := b.fill(); err != nil {
			return nil, err
		}
	}
}

// fill issues one read of ReadSize bytes and appends the result.
func (b *StreamBuffer) fill() error {
	if b.err != nil {
		return b.err
	}
	if b.pending != nil {
		err := b.pending
		b.pending = nil
		return b.fail(err)
	}

	b.makeRoom()

	for range maxEmptyReads {
		n, err := b.rd.Read(b.buf[b.w : b.w+ReadSize])
		if n < 0 || n > ReadSize {
			return b.fail(fmt.Errorf("invalid read count %d", n))
		}
		b.w += n
		if err != nil {
			if n > 0 {
				b.pending = err
				return nil
			}
			return b.fail(err)
		}
		if n > 0 {
			return nil
		}
	}
	return b.fail(io.ErrNoProgress)
}

// makeRoom guarantees ReadSize bytes of free space after b.w.
// The consumed prefix is reclaimed before growing, and growth doubles the
// buffer so appends stay amortised O(1).
func (b *StreamBuffer) makeRoom() {
	if b.r > 0 && (b.r == b.w || b.r >= len(b.buf)/2) {
		copy(b.buf, b.buf[b.r:b.w])
		b.w -= b.r
		b.r = 0
	}
	if len(b.buf)-b.w >= ReadSize {
		return
	}

	size := max(2*len(b.buf), b.w-b.r+ReadSize)
	buf := make([]byte, size)
	copy(buf, b.buf[b.r:b.w])
	b.w -= b.r
	b.r = 0
	b.buf = buf
}

// fail records the terminal error and drops the buffered bytes.
func (b *StreamBuffer) fail(err error) error {
	buffered := b.Buffered()
	b.buf = nil
	b.r, b.w = 0, 0

	if isClosed(err) {
		b.err = &ConnectionClosedError{Op: "read", Buffered: buffered, Err: err}
	} else {
		b.err = &ConnectionError{Op: "read", Err: err}
	}
	return b.err
}

// isClosed reports whether err means the stream ended rather than failed.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
