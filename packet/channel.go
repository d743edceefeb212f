package packet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/pior/sshed/internal"
)

// inlineBodyMax is the largest body appended to the header buffer and sent
// in the same write.
const inlineBodyMax = 16 * 1024

var frameBuffers = internal.NewBufferPool(512, MaxHeaderBytes+inlineBodyMax)

// Packet is one unit of exchange: headers and a body of exactly Size bytes.
type Packet struct {
	Headers *Headers
	Body    []byte
}

// Size returns the body length declared by the headers.
func (p *Packet) Size() int64 {
	size, _ := p.Headers.GetInt(HeaderSize)
	return size
}

// deadliner is implemented by net.Conn and *os.File.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Channel sends and receives packets over one connection.
//
// A Channel owns the read side of the connection: bytes read past the end of
// a packet are kept for the next receive. It is bound to a single
// connection and is not safe for concurrent use.
type Channel struct {
	rw     io.ReadWriter
	stream *StreamBuffer
}

// NewChannel wraps rw. Context deadlines are applied to rw when it supports
// SetDeadline.
func NewChannel(rw io.ReadWriter) *Channel {
	return &Channel{
		rw:     rw,
		stream: NewStreamBuffer(rw),
	}
}

// Send writes a packet whose body is body. The Size header is set from
// len(body), replacing any caller value; h itself is not modified.
func (c *Channel) Send(ctx context.Context, h *Headers, body []byte) error {
	out := h.Clone()
	out.SetInt(HeaderSize, int64(len(body)))

	buf := frameBuffers.Get()
	defer frameBuffers.Put(buf)

	if err := EncodeHeaders(buf, out); err != nil {
		return err
	}

	release, err := c.applyDeadline(ctx)
	if err != nil {
		return err
	}
	defer release()

	// Small bodies go out with the headers in one write
	if len(body) <= inlineBodyMax {
		buf.Write(body)
		return c.write(buf.Bytes())
	}

	if err := c.write(buf.Bytes()); err != nil {
		return err
	}
	return c.write(body)
}

// SendFrom writes a packet whose body is the whole content of r.
// The size is measured by seeking to the end of r, which is then rewound.
func (c *Channel) SendFrom(ctx context.Context, h *Headers, r io.ReadSeeker) error {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("packet: measuring body: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("packet: rewinding body: %w", err)
	}

	out := h.Clone()
	out.SetInt(HeaderSize, size)

	buf := frameBuffers.Get()
	defer frameBuffers.Put(buf)

	if err := EncodeHeaders(buf, out); err != nil {
		return err
	}

	release, err := c.applyDeadline(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := c.write(buf.Bytes()); err != nil {
		return err
	}

	n, err := io.CopyN(c.rw, r, size)
	if errors.Is(err, io.EOF) {
		// The source shrank: the peer is still waiting for bytes
		return &ConnectionError{
			Op:  "write",
			Err: fmt.Errorf("body source ended after %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF),
		}
	}
	if err != nil {
		return writeError(err)
	}
	return nil
}

// Receive reads the next packet with its whole body.
func (c *Channel) Receive(ctx context.Context) (*Packet, error) {
	h, err := c.ReceiveHeaders(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.ReadBody(ctx, h, nil)
	if err != nil {
		return nil, err
	}
	return &Packet{Headers: h, Body: body}, nil
}

// ReceiveTo reads the next packet, streaming its body into sink.
func (c *Channel) ReceiveTo(ctx context.Context, sink io.Writer) (*Headers, error) {
	h, err := c.ReceiveHeaders(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := c.ReadBody(ctx, h, sink); err != nil {
		return nil, err
	}
	return h, nil
}

// ReceiveHeaders reads the header block of the next packet and leaves its
// body unread. Follow it with ReadBody, or drop the connection.
func (c *Channel) ReceiveHeaders(ctx context.Context) (*Headers, error) {
	release, err := c.applyDeadline(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return ReadHeaders(c.stream)
}

// ReadBody reads the body announced by h. With a nil sink the body is
// returned, otherwise it is streamed into sink and the returned slice is nil.
func (c *Channel) ReadBody(ctx context.Context, h *Headers, sink io.Writer) ([]byte, error) {
	size, err := BodySize(h)
	if err != nil {
		return nil, err
	}

	release, err := c.applyDeadline(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return c.stream.ReadExact(int(size), sink)
}

// Close closes the underlying connection when it is an io.Closer.
func (c *Channel) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// BodySize returns the Size header of h. A missing Size is an empty body.
func BodySize(h *Headers) (int64, error) {
	v, ok := h.Get(HeaderSize)
	if !ok {
		return 0, nil
	}
	size, ok := v.Int()
	if !ok || size < 0 || size > math.MaxInt {
		return 0, &MalformedPacketError{Message: "invalid Size header " + v.GoString()}
	}
	return size, nil
}

// CheckVersion validates the Version header of h against AcceptedVersions.
//
// Returns *MalformedPacketError when Version is missing and
// *UnknownVersionError when it is not accepted. Either way the body must not
// be read and the connection should be dropped.
func CheckVersion(h *Headers) error {
	v, ok := h.Get(HeaderVersion)
	if !ok {
		return &MalformedPacketError{Message: "missing Version header"}
	}
	if version, ok := v.Int(); ok && AcceptedVersions[version] {
		return nil
	}
	return &UnknownVersionError{Version: v}
}

// applyDeadline mirrors the context deadline on the connection and returns a
// function clearing it.
func (c *Channel) applyDeadline(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, ok := c.rw.(deadliner)
	if !ok {
		return func() {}, nil
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return func() {}, nil
	}

	_ = d.SetDeadline(deadline)
	return func() { _ = d.SetDeadline(time.Time{}) }, nil
}

func (c *Channel) write(p []byte) error {
	if _, err := c.rw.Write(p); err != nil {
		return writeError(err)
	}
	return nil
}

func writeError(err error) error {
	if isClosed(err) {
		return &ConnectionClosedError{Op: "write", Err: err}
	}
	return &ConnectionError{Op: "write", Err: err}
}
