package sshed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/pior/sshed/packet"
	"github.com/pior/sshed/patch"
)

// Guest edits files through an agent, on the host where the files live.
type Guest struct {
	config GuestConfig
	log    *zap.SugaredLogger
	getenv func(string) string

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[net.Conn]
}

// NewGuest creates a guest with the given configuration.
func NewGuest(config GuestConfig) *Guest {
	log := config.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	getenv := config.getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	return &Guest{
		config:   config,
		log:      log.Named("guest"),
		getenv:   getenv,
		breakers: make(map[string]*gobreaker.CircuitBreaker[net.Conn]),
	}
}

// Edit lets the user edit the file at path with the agent's editor.
//
// The file is sent to the agent, which replies once the editor is closed.
// An edited file comes back either whole or as a diff patched onto the local
// copy. The result is staged, checked against the size and checksum
// announced by the agent, and only then written over path in place, keeping
// its inode and permissions. A path that does not exist is created.
//
// When the agent cannot be reached the file is edited with the local editor,
// unless NoFallback is set. Once the exchange began, failures are returned
// and path is left untouched.
func (g *Guest) Edit(ctx context.Context, path string) error {
	conn, err := g.connect(ctx)
	if errors.Is(err, ErrAgentUnavailable) && !g.config.NoFallback {
		g.log.Warnw("using the local editor", "error", err)
		return g.editLocally(ctx, path)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	err = g.exchange(ctx, packet.NewChannel(conn), path)
	if ctxErr := ctx.Err(); ctxErr != nil && packet.IsConnectionClosed(err) {
		return ctxErr
	}
	return err
}

// connect dials the agent. Every failure wraps ErrAgentUnavailable, except a
// done ctx.
func (g *Guest) connect(ctx context.Context) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	socket, err := FindSocket(g.config.Socket, g.getenv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
	}

	dial := func() (net.Conn, error) {
		d := net.Dialer{Timeout: g.config.DialTimeout}
		return d.DialContext(ctx, "unix", socket)
	}

	var conn net.Conn
	if cb := g.breaker(socket); cb != nil {
		conn, err = cb.Execute(dial)
	} else {
		conn, err = dial()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
	}

	g.log.Debugw("connected", "socket", socket)
	return conn, nil
}

func (g *Guest) breaker(socket string) *gobreaker.CircuitBreaker[net.Conn] {
	if g.config.NewCircuitBreaker == nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[socket]
	if !ok {
		cb = g.config.NewCircuitBreaker(socket)
		g.breakers[socket] = cb
	}
	return cb
}

func (g *Guest) editLocally(ctx context.Context, path string) error {
	editor := g.config.LocalEditor
	if editor == nil {
		var err error
		if editor, err = defaultEditor(); err != nil {
			return err
		}
	}
	return editor.Edit(ctx, path)
}

func (g *Guest) exchange(ctx context.Context, ch *packet.Channel, path string) error {
	var original io.ReadSeeker
	exists := true

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		original, exists = bytes.NewReader(nil), false
	case err != nil:
		return err
	default:
		defer f.Close()
		original = f
	}

	size, err := original.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("sshed: measuring %s: %w", path, err)
	}

	h := packet.NewHeaders()
	h.SetInt(packet.HeaderVersion, packet.ProtocolVersion)
	h.SetString(packet.HeaderFilename, filepath.Base(path))
	h.SetInt(packet.HeaderFilesize, size)
	h.SetBool(packet.HeaderDifferential, !g.config.FullContent)

	if err := ch.SendFrom(ctx, h, original); err != nil {
		return err
	}
	g.log.Debugw("file sent, waiting for the editor", "file", path, "size", size)

	reply, err := ch.ReceiveHeaders(ctx)
	if err != nil {
		return err
	}
	if err := packet.CheckVersion(reply); err != nil {
		return err
	}

	modified, ok := reply.GetBool(packet.HeaderModified)
	if !ok {
		return &packet.MalformedPacketError{Message: "missing Modified header"}
	}
	if !modified {
		_, err := ch.ReadBody(ctx, reply, io.Discard)
		g.log.Debugw("file unchanged", "file", path)
		return err
	}

	wantSize, ok := reply.GetInt(packet.HeaderFilesize)
	if !ok {
		return &packet.MalformedPacketError{Message: "missing Filesize header"}
	}
	checksum, ok := reply.GetString(packet.HeaderChecksum)
	if !ok {
		return &packet.MalformedPacketError{Message: "missing Checksum header"}
	}
	differential, _ := reply.GetBool(packet.HeaderDifferential)

	staging, err := os.CreateTemp("", "sshed-*")
	if err != nil {
		return fmt.Errorf("sshed: creating staging file: %w", err)
	}
	keep := false
	defer func() {
		_ = staging.Close()
		if !keep {
			_ = os.Remove(staging.Name())
		}
	}()

	cw := newChecksumWriter(staging)
	if differential {
		err = g.applyDiff(ctx, ch, reply, original, cw)
	} else {
		_, err = ch.ReadBody(ctx, reply, cw)
	}
	if err != nil {
		return err
	}

	if err := cw.verify(path, wantSize, checksum); err != nil {
		return err
	}
	if err := commit(path, staging, exists); err != nil {
		var commitErr *CommitError
		keep = errors.As(err, &commitErr)
		return err
	}

	g.log.Infow("file updated", "file", path, "size", wantSize, "differential", differential)
	return nil
}

func (g *Guest) applyDiff(ctx context.Context, ch *packet.Channel, reply *packet.Headers, original io.ReadSeeker, w io.Writer) error {
	text, err := ch.ReadBody(ctx, reply, nil)
	if err != nil {
		return err
	}
	d, err := patch.ParseDiff(text)
	if err != nil {
		return err
	}
	if _, err := original.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("sshed: rewinding original: %w", err)
	}
	return patch.NewPatcher(original, d.Hunks).Patch(w)
}

// commit copies the staged content over path in place. A failure once path
// is truncated leaves it partially written and returns a CommitError naming
// the staging file, which the caller keeps.
func commit(path string, staging *os.File, exists bool) error {
	if _, err := staging.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("sshed: rewinding staging file: %w", err)
	}

	flag := os.O_WRONLY | os.O_TRUNC
	if !exists {
		flag |= os.O_CREATE | os.O_EXCL
	}
	dst, err := os.OpenFile(path, flag, 0o666)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, staging)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return &CommitError{Name: path, Staging: staging.Name(), Err: err}
	}
	return nil
}
