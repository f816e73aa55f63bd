package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/danmuck/imodctl/internal/observability"
	"github.com/danmuck/imodctl/internal/protocol"
	"github.com/danmuck/imodctl/internal/protocol/command"
	"github.com/rs/zerolog/log"
)

// State is the session lifecycle position. It only moves forward.
type State int

const (
	StateNew State = iota
	StateListening
	StateStarted
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateListening:
		return "listening"
	case StateStarted:
		return "started"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var errViewerExited = errors.New("viewer exited before connecting")

// killGrace bounds how long Kill waits for a spawned viewer to exit.
const killGrace = 5 * time.Second

// Session is a single-client, half-duplex link to one viewer process.
type Session struct {
	cfg Config

	// state and addr are readable without mu so status probes never wait
	// behind a blocked Accept or Send.
	state atomic.Int32
	addr  atomic.Value

	mu   sync.Mutex
	ln   net.Listener
	conn net.Conn
	rd   *bufio.Reader

	// rng jitters bind retries; guarded by mu.
	rng *rand.Rand

	cmd *exec.Cmd
	// waitDone is closed when a spawned viewer exits.
	waitDone chan struct{}
}

// New returns an unstarted session.
func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		waitDone: make(chan struct{}),
	}
	s.addr.Store("")
	return s, nil
}

// FindFreePort asks the OS for an unused TCP port on host and releases it.
func FindFreePort(host string) (int, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, &protocol.ConnectionError{Op: "find free port", Addr: host, Err: err}
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Addr is the host:port the viewer must connect back to.
func (s *Session) Addr() string {
	return s.addr.Load().(string)
}

// Listen binds the session endpoint.
func (s *Session) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenLocked()
}

func (s *Session) listenLocked() error {
	if s.State() != StateNew {
		return s.stateErr("listen")
	}
	if s.cfg.Port != 0 {
		return s.bindLocked(s.cfg.Port)
	}

	attempts := max(s.cfg.Bind.Attempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var port int
		port, err = FindFreePort(s.cfg.Host)
		if err == nil {
			if err = s.bindLocked(port); err == nil {
				return nil
			}
		}
		if !errors.Is(err, syscall.EADDRINUSE) || attempt == attempts {
			break
		}
		delay := NextBackoffDelay(s.cfg.Bind, attempt, s.rng)
		log.Debug().Int("attempt", attempt).Dur("delay", delay).Err(err).Msg("session.Listen retry")
		time.Sleep(delay)
	}
	return err
}

func (s *Session) bindLocked(port int) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &protocol.ConnectionError{Op: "listen", Addr: addr, Err: err}
	}
	s.ln = ln
	s.addr.Store(ln.Addr().String())
	s.setState(StateListening)
	log.Debug().Str("addr", s.Addr()).Msg("session.Listen")
	return nil
}

// Start binds the endpoint if needed and spawns executable with
// --hostAddress host:port followed by extraArgs.
func (s *Session) Start(executable string, extraArgs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateNew {
		if err := s.listenLocked(); err != nil {
			return err
		}
	}
	if s.State() != StateListening {
		return s.stateErr("start")
	}

	args := append([]string{}, s.cfg.Args...)
	args = append(args, "--hostAddress", s.Addr())
	args = append(args, extraArgs...)
	cmd := exec.Command(executable, args...)
	cmd.Env = s.cfg.environ()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("session: start %s: %w", executable, err)
	}

	s.cmd = cmd
	go func() {
		err := cmd.Wait()
		log.Debug().Int("pid", cmd.Process.Pid).Err(err).Msg("session: viewer exited")
		close(s.waitDone)
	}()

	s.setState(StateStarted)
	log.Info().
		Str("executable", executable).
		Str("addr", s.Addr()).
		Int("pid", cmd.Process.Pid).
		Msg("session.Start")
	return nil
}

// Accept blocks until the viewer connects back. Only one peer is accepted;
// the listener is closed afterwards.
func (s *Session) Accept(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StateListening && s.State() != StateStarted {
		return s.stateErr("accept")
	}

	ln := s.ln
	if dl, ok := ln.(interface{ SetDeadline(time.Time) error }); ok {
		if d, ok := deadline(ctx, s.cfg.AcceptTimeout); ok {
			_ = dl.SetDeadline(d)
		}
		stop := context.AfterFunc(ctx, func() { _ = dl.SetDeadline(time.Unix(1, 0)) })
		defer stop()
		if s.cmd != nil {
			accepted := make(chan struct{})
			defer close(accepted)
			go func() {
				select {
				case <-s.waitDone:
					_ = dl.SetDeadline(time.Unix(1, 0))
				case <-accepted:
				}
			}()
		}
	}

	conn, err := ln.Accept()
	if err != nil {
		if s.cmd != nil && s.Exited() {
			return &protocol.ConnectionError{Op: "accept", Addr: s.Addr(), Err: errViewerExited}
		}
		return classify(ctx, "accept", s.Addr(), err)
	}
	_ = ln.Close()
	s.ln = nil
	s.conn = conn
	s.rd = bufio.NewReaderSize(conn, s.cfg.ReadBufferSize)
	s.setState(StateConnected)
	log.Info().Str("peer", conn.RemoteAddr().String()).Msg("session.Accept")
	return nil
}

// Send writes payload and reads exactly one response. Requests are never
// pipelined. Any failure ends the session.
func (s *Session) Send(ctx context.Context, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(ctx, "raw", payload)
}

// SendCommand serializes c and sends it.
func (s *Session) SendCommand(ctx context.Context, c command.Command) (string, error) {
	payload, err := c.Marshal(s.cfg.Indent)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(ctx, c.Type, payload)
}

func (s *Session) sendLocked(ctx context.Context, typ string, payload []byte) (resp string, err error) {
	if s.State() != StateConnected {
		return "", s.stateErr("send")
	}
	if s.cfg.Framing == FramingDelimited {
		body := bytes.TrimSuffix(payload, []byte{s.cfg.Delimiter})
		if i := bytes.IndexByte(body, s.cfg.Delimiter); i >= 0 {
			return "", &protocol.ValueError{
				Op:     "session send",
				Reason: fmt.Sprintf("payload contains the frame delimiter %q at offset %d", s.cfg.Delimiter, i),
				Err:    protocol.ErrInvalidArgument,
			}
		}
	}
	start := time.Now()
	defer func() {
		observability.RecordCommand(typ, outcome(err), time.Since(start))
		if err != nil {
			log.Warn().Str("type", typ).Err(err).Msg("session.Send failed")
			s.dropConnLocked()
		}
	}()

	conn := s.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if s.cfg.Framing == FramingDelimited && !bytes.HasSuffix(payload, []byte{s.cfg.Delimiter}) {
		payload = append(append([]byte{}, payload...), s.cfg.Delimiter)
	}
	if d, ok := deadline(ctx, s.cfg.WriteTimeout); ok {
		_ = s.conn.SetWriteDeadline(d)
	} else {
		_ = s.conn.SetWriteDeadline(time.Time{})
	}
	if _, err := s.conn.Write(payload); err != nil {
		return "", classify(ctx, "send", s.Addr(), err)
	}

	if d, ok := deadline(ctx, s.cfg.ReadTimeout); ok {
		_ = s.conn.SetReadDeadline(d)
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
	raw, err := s.readResponse()
	if err != nil {
		return "", classify(ctx, "receive", s.Addr(), err)
	}
	if !utf8.Valid(raw) {
		return "", &protocol.ProtocolError{Op: "receive", Response: string(raw), Err: errors.New("response is not valid UTF-8")}
	}
	log.Debug().Str("type", typ).Int("request_bytes", len(payload)).Int("response_bytes", len(raw)).Msg("session.Send")
	return string(raw), nil
}

func (s *Session) readResponse() ([]byte, error) {
	if s.cfg.Framing == FramingDelimited {
		return s.readDelimited()
	}
	buf := make([]byte, s.cfg.ReadBufferSize)
	n, err := s.rd.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", protocol.ErrPeerClosed, io.EOF)
		}
		return nil, err
	}
	if n == len(buf) {
		log.Warn().Int("read_buffer", n).Msg("session: response filled the read buffer and may be truncated")
	}
	return buf[:n], nil
}

func (s *Session) readDelimited() ([]byte, error) {
	var out []byte
	for {
		chunk, err := s.rd.ReadSlice(s.cfg.Delimiter)
		out = append(out, chunk...)
		if len(out) > s.cfg.MaxResponseBytes {
			return nil, &protocol.ProtocolError{
				Op:       "receive",
				Response: string(out[:min(len(out), 64)]),
				Err:      fmt.Errorf("response exceeds %d bytes", s.cfg.MaxResponseBytes),
			}
		}
		switch {
		case err == nil:
			return out[:len(out)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: %v", protocol.ErrPeerClosed, err)
		default:
			return nil, err
		}
	}
}

// Kill asks the viewer for its process id and terminates that process.
// A peer that is already gone is not an error. The session is closed and
// any spawned child is terminated and reaped, even when the viewer never
// answered.
func (s *Session) Kill(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.closeLocked()

	if s.conn == nil {
		return s.killChildLocked()
	}
	defer func() {
		if err == nil || s.cmd == nil || s.Exited() {
			return
		}
		if kerr := s.killChildLocked(); kerr != nil {
			log.Warn().Err(kerr).Msg("session.Kill: terminate child")
		}
	}()

	req, err := command.GetProcessID().Marshal(s.cfg.Indent)
	if err != nil {
		return err
	}
	resp, err := s.sendLocked(ctx, command.TypeGetProcessID, req)
	if err != nil {
		if peerGone(err) {
			log.Info().Err(err).Msg("session.Kill: viewer already gone")
			return s.killChildLocked()
		}
		return err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil || pid <= 0 {
		if err == nil {
			err = fmt.Errorf("pid %d out of range", pid)
		}
		return &protocol.ProtocolError{Op: "kill", Response: resp, Err: err}
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("session: find process %d: %w", pid, err)
	}
	if err := terminate(proc); err != nil && !errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("session: terminate %d: %w", pid, err)
	}
	log.Info().Int("pid", pid).Msg("session.Kill")
	s.reapLocked(ctx)
	return nil
}

// Close releases the socket endpoints without touching the viewer process.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

// Exited reports whether a spawned viewer has exited.
func (s *Session) Exited() bool {
	select {
	case <-s.waitDone:
		return true
	default:
		return false
	}
}

func (s *Session) killChildLocked() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	if err := terminate(s.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("session: terminate %d: %w", s.cmd.Process.Pid, err)
	}
	s.reapLocked(context.Background())
	return nil
}

// reapLocked waits briefly for a spawned child to exit.
func (s *Session) reapLocked(ctx context.Context) {
	if s.cmd == nil {
		return
	}
	timer := time.NewTimer(killGrace)
	defer timer.Stop()
	select {
	case <-s.waitDone:
	case <-ctx.Done():
	case <-timer.C:
		log.Warn().Dur("grace", killGrace).Msg("session: viewer did not exit")
	}
}

func (s *Session) dropConnLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
		s.rd = nil
	}
	s.setState(StateClosed)
}

func (s *Session) closeLocked() {
	s.dropConnLocked()
	if s.ln != nil {
		_ = s.ln.Close()
		s.ln = nil
	}
}

func (s *Session) stateErr(op string) error {
	return &protocol.ValueError{
		Op:     "session " + op,
		Reason: fmt.Sprintf("not allowed in state %s", s.State()),
		Err:    protocol.ErrInvalidState,
	}
}

// deadline combines a configured timeout with the context deadline.
func deadline(ctx context.Context, timeout time.Duration) (time.Time, bool) {
	d, ok := ctx.Deadline()
	if timeout > 0 {
		t := time.Now().Add(timeout)
		if !ok || t.Before(d) {
			d, ok = t, true
		}
	}
	return d, ok
}

func classify(ctx context.Context, op, addr string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &protocol.TimeoutError{Op: op, Err: ctxErr}
		}
		return fmt.Errorf("session: %s: %w", op, ctxErr)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &protocol.TimeoutError{Op: op, Err: err}
	}
	return &protocol.ConnectionError{Op: op, Addr: addr, Err: err}
}

func outcome(err error) string {
	var (
		te *protocol.TimeoutError
		ce *protocol.ConnectionError
		pe *protocol.ProtocolError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &ce):
		return "connection"
	case errors.As(err, &pe):
		return "protocol"
	default:
		return "error"
	}
}

func peerGone(err error) bool {
	var ce *protocol.ConnectionError
	if !errors.As(err, &ce) {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, protocol.ErrPeerClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed)
}
