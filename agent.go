package sshed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pior/sshed/internal/coarsetime"
	"github.com/pior/sshed/packet"
	"github.com/pior/sshed/patch"
)

// acceptBackoff is the pause after a failed Accept.
const acceptBackoff = 50 * time.Millisecond

// Agent serves edit sessions on the host where the editor runs.
//
// Each accepted connection carries one session: the guest sends a file, the
// agent lets the user edit a copy and replies with the outcome. Sessions
// run concurrently up to AgentConfig.MaxSessions.
type Agent struct {
	config AgentConfig
	editor Editor
	log    *zap.SugaredLogger
	slots  *sessionSlots
	stats  *agentStatsCollector

	mu        sync.Mutex
	listeners map[net.Listener]context.CancelFunc
	conns     map[net.Conn]struct{}
	dirs      []string
	closed    bool
	wg        sync.WaitGroup
}

// NewAgent creates an agent with the given configuration.
func NewAgent(config AgentConfig) (*Agent, error) {
	maxSessions := config.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	editor := config.Editor
	if editor == nil {
		var err error
		if editor, err = defaultEditor(); err != nil {
			return nil, err
		}
	}

	log := config.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	slots, err := newSessionSlots(maxSessions)
	if err != nil {
		return nil, err
	}

	return &Agent{
		config:    config,
		editor:    editor,
		log:       log.Named("agent"),
		slots:     slots,
		stats:     newAgentStatsCollector(),
		listeners: make(map[net.Listener]context.CancelFunc),
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Listen creates the agent socket at addr and restricts it to the current
// user. An empty addr creates a private directory under TempDir holding a
// socket named SocketName; the directory is removed by Close.
func (a *Agent) Listen(addr string) (net.Listener, error) {
	if addr == "" {
		dir, err := os.MkdirTemp(a.config.TempDir, "sshed-")
		if err != nil {
			return nil, fmt.Errorf("sshed: creating socket directory: %w", err)
		}
		a.mu.Lock()
		a.dirs = append(a.dirs, dir)
		a.mu.Unlock()
		addr = filepath.Join(dir, SocketName)
	}

	l, err := net.Listen("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("sshed: listening on %s: %w", addr, err)
	}
	if err := os.Chmod(addr, 0o600); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("sshed: securing socket: %w", err)
	}

	a.log.Debugw("listening", "socket", addr)
	return l, nil
}

// Serve accepts connections on l and serves one session per connection.
//
// A session slot is acquired before each Accept, so at most MaxSessions
// sessions run at once. Serve returns nil when ctx is done or the listener
// is closed. Running sessions are stopped first: their connections are
// closed and their editors killed.
func (a *Agent) Serve(ctx context.Context, l net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAgentClosed
	}
	a.listeners[l] = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.listeners, l)
		a.mu.Unlock()
	}()

	defer a.wg.Wait()
	defer cancel()

	context.AfterFunc(ctx, func() {
		_ = l.Close()
		a.closeConns()
	})

	for {
		slot, err := a.slots.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		conn, err := l.Accept()
		if err != nil {
			slot.Release()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			a.log.Warnw("accept failed", "error", err)
			time.Sleep(acceptBackoff)
			continue
		}

		if !a.track(conn) {
			_ = conn.Close()
			slot.Release()
			return ErrAgentClosed
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer slot.Release()
			defer a.untrack(conn)

			a.handle(ctx, conn)
		}()
	}
}

// Close stops the running Serve loops, cancels running sessions and their
// editors, waits for them to end and removes the socket directories created
// by Listen.
func (a *Agent) Close() error {
	a.mu.Lock()
	a.closed = true
	cancels := make([]context.CancelFunc, 0, len(a.listeners))
	for l, cancel := range a.listeners {
		_ = l.Close()
		cancels = append(cancels, cancel)
	}
	dirs := a.dirs
	a.dirs = nil
	a.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	a.closeConns()
	a.slots.Close()

	var errs []error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns a snapshot of session statistics.
func (a *Agent) Stats() AgentStats {
	return a.stats.snapshot()
}

// SlotStats returns a snapshot of session slot statistics.
func (a *Agent) SlotStats() SlotStats {
	return a.slots.Stats()
}

func (a *Agent) track(conn net.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.conns[conn] = struct{}{}
	return true
}

func (a *Agent) untrack(conn net.Conn) {
	a.mu.Lock()
	delete(a.conns, conn)
	a.mu.Unlock()
	_ = conn.Close()
}

func (a *Agent) closeConns() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for conn := range a.conns {
		_ = conn.Close()
	}
}

func (a *Agent) handle(ctx context.Context, conn net.Conn) {
	start := coarsetime.Now()
	defer func() { a.stats.recordSession(coarsetime.Since(start)) }()

	log := a.log.With("session", uuid.NewString())
	err := a.serveSession(ctx, packet.NewChannel(conn), log)

	switch {
	case err == nil:
	case isRejection(err):
		a.stats.recordRejected()
		log.Warnw("request rejected", "error", err)
	case packet.IsConnectionClosed(err):
		a.stats.recordFailure()
		log.Infow("guest disconnected", "error", err)
	default:
		a.stats.recordFailure()
		log.Errorw("session failed", "error", err)
	}
}

// isRejection reports whether err is caused by the request itself.
func isRejection(err error) bool {
	var version *packet.UnknownVersionError
	return packet.IsMalformed(err) || errors.As(err, &version)
}

// request is the validated header block sent by a guest.
type request struct {
	name         string
	size         int64
	differential bool
}

func parseRequest(h *packet.Headers) (*request, error) {
	if err := packet.CheckVersion(h); err != nil {
		return nil, err
	}

	size, err := packet.BodySize(h)
	if err != nil {
		return nil, err
	}
	if v, ok := h.Get(packet.HeaderFilesize); ok {
		if filesize, ok := v.Int(); !ok || filesize != size {
			return nil, &packet.MalformedPacketError{
				Message: fmt.Sprintf("Filesize %s does not match Size %d", v.GoString(), size),
			}
		}
	}

	req := &request{name: "file", size: size}
	if v, ok := h.Get(packet.HeaderFilename); ok {
		req.name = sanitizeName(v.String())
	}
	req.differential, _ = h.GetBool(packet.HeaderDifferential)
	return req, nil
}

// sanitizeName keeps the base name of a guest file name so that it cannot
// escape the session directory.
func sanitizeName(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return "file"
	}
	return name
}

// reply is the outcome of a session.
type reply int

const (
	replyUnchanged reply = iota
	replyDiff
	replyFull
)

func (r reply) String() string {
	switch r {
	case replyUnchanged:
		return "unchanged"
	case replyDiff:
		return "diff"
	default:
		return "full"
	}
}

func (a *Agent) serveSession(ctx context.Context, ch *packet.Channel, log *zap.SugaredLogger) error {
	ioCtx, cancel := a.ioContext(ctx)
	h, err := ch.ReceiveHeaders(ioCtx)
	cancel()
	if err != nil {
		return err
	}

	req, err := parseRequest(h)
	if err != nil {
		return err
	}
	log = log.With("file", req.name)

	dir, err := os.MkdirTemp(a.config.TempDir, "sshed-session-")
	if err != nil {
		return fmt.Errorf("sshed: creating session directory: %w", err)
	}
	defer os.RemoveAll(dir)

	originalPath := filepath.Join(dir, "original")
	original, err := a.receiveOriginal(ctx, ch, h, originalPath)
	if err != nil {
		return err
	}
	a.stats.recordReceived(original.n)

	workingPath := filepath.Join(dir, "edit", req.name)
	if err := copyFile(workingPath, originalPath); err != nil {
		return err
	}

	log.Infow("editing", "size", req.size, "differential", req.differential)
	if err := a.editor.Edit(ctx, workingPath); err != nil {
		return err
	}

	edited, err := os.ReadFile(workingPath)
	if err != nil {
		return fmt.Errorf("sshed: reading edited file: %w", err)
	}

	out := packet.NewHeaders()
	out.SetInt(packet.HeaderVersion, packet.ProtocolVersion)

	var body []byte
	kind := replyUnchanged
	checksum := Checksum(edited)
	if int64(len(edited)) != original.n || checksum != original.Sum() {
		body, kind = edited, replyFull
		if req.differential {
			if diff := a.diff(originalPath, req.name, edited, log); diff != nil {
				body, kind = diff, replyDiff
			}
		}
		out.SetBool(packet.HeaderModified, true)
		out.SetBool(packet.HeaderDifferential, kind == replyDiff)
		out.SetInt(packet.HeaderFilesize, int64(len(edited)))
		out.SetString(packet.HeaderChecksum, checksum)
	} else {
		out.SetBool(packet.HeaderModified, false)
	}

	ioCtx, cancel = a.ioContext(ctx)
	defer cancel()
	if err := ch.Send(ioCtx, out, body); err != nil {
		return err
	}

	a.stats.recordReply(kind)
	a.stats.recordSent(int64(len(body)))
	log.Infow("session done", "reply", kind, "bytes", len(body))
	return nil
}

// receiveOriginal streams the request body into path.
func (a *Agent) receiveOriginal(ctx context.Context, ch *packet.Channel, h *packet.Headers, path string) (*checksumWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("sshed: creating original copy: %w", err)
	}
	defer f.Close()

	ioCtx, cancel := a.ioContext(ctx)
	defer cancel()

	cw := newChecksumWriter(f)
	if _, err := ch.ReadBody(ioCtx, h, cw); err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("sshed: writing original copy: %w", err)
	}
	return cw, nil
}

// diff returns the diff turning the original into edited when it is smaller
// than edited, nil otherwise.
func (a *Agent) diff(originalPath, name string, edited []byte, log *zap.SugaredLogger) []byte {
	original, err := os.ReadFile(originalPath)
	if err != nil {
		log.Warnw("reading original copy", "error", err)
		return nil
	}

	opts := []patch.Option{patch.WithNames(name, name)}
	if a.config.DiffContext > 0 {
		opts = append(opts, patch.WithContext(a.config.DiffContext))
	}
	if a.config.DiffTimeout > 0 {
		opts = append(opts, patch.WithTimeout(a.config.DiffTimeout))
	}

	d, err := patch.Generate(patch.SplitLines(string(original)), patch.SplitLines(string(edited)), opts...)
	if err != nil {
		log.Debugw("diff unavailable, sending full content", "error", err)
		return nil
	}
	if !patch.ShouldSendDiff(d, int64(len(edited))) {
		return nil
	}
	return d.Bytes()
}

func (a *Agent) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.IOTimeout > 0 {
		return context.WithTimeout(ctx, a.config.IOTimeout)
	}
	return ctx, func() {}
}

// copyFile copies src to a new file dst, creating its directory.
func copyFile(dst, src string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("sshed: creating working directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("sshed: opening original copy: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("sshed: creating working copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("sshed: writing working copy: %w", err)
	}
	return out.Close()
}
