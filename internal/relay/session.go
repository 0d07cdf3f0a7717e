// Package relay moves bytes between an open serial connection and the
// process's standard streams until one side ends the session.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	serial "github.com/allbin/go-serial-terminal"
	"go.uber.org/zap"
)

// CancelByte ends the session when it appears anywhere in an input chunk.
const CancelByte = 0x03

const defaultBufferSize = 4096

// queueDepth is how many input chunks may wait for the device
const queueDepth = 256

// Reason identifies the event that ended a session.
type Reason int

const (
	Cancelled    Reason = iota // cancel byte read from input
	InputClosed                // input reached end of stream
	Interrupted                // context cancelled, e.g. by SIGINT
	DeviceClosed               // device hung up or was closed elsewhere
	DeviceError                // reading from or writing to the device failed
	InputError                 // reading input failed
	OutputError                // writing output failed
)

func (r Reason) String() string {
	switch r {
	case Cancelled:
		return "cancelled"
	case InputClosed:
		return "input closed"
	case Interrupted:
		return "interrupted"
	case DeviceClosed:
		return "device closed"
	case DeviceError:
		return "device error"
	case InputError:
		return "input error"
	case OutputError:
		return "output error"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Result is the terminal state of a session.
type Result struct {
	Reason Reason
	Err    error
}

// ExitCode maps the result to a process exit status.
func (r Result) ExitCode() int {
	switch r.Reason {
	case Cancelled, InputClosed, Interrupted, DeviceClosed:
		return 0
	default:
		return 1
	}
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Reason, r.Err)
	}
	return r.Reason.String()
}

// Conn is the part of a serial port a session needs. serial.Port satisfies it.
type Conn interface {
	io.Writer
	io.Closer
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

// Optional Conn capabilities used by the close policy.
type drainer interface {
	Drain(ctx context.Context) error
}

type outputFlusher interface {
	FlushOutput() error
}

// Option configures a Session.
type Option func(*Session)

// WithEcho copies every forwarded input chunk to the output.
func WithEcho(echo bool) Option {
	return func(s *Session) {
		s.echo = echo
	}
}

// WithLogger sets the logger for session events. Nil keeps the no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithBufferSize sets the read size of both pumps.
func WithBufferSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.bufSize = size
		}
	}
}

// WithHangupWatch runs watch alongside the pumps. A nil return means the
// remote end went away; an error is treated as a device failure.
func WithHangupWatch(watch func(ctx context.Context) error) Option {
	return func(s *Session) {
		s.hangupWatch = watch
	}
}

// Session relays between one connection and an input/output pair. A
// session runs once.
type Session struct {
	conn        Conn
	in          io.Reader
	out         *syncWriter
	echo        bool
	log         *zap.Logger
	bufSize     int
	hangupWatch func(ctx context.Context) error

	// closed is set before the close policy runs; later device writes are
	// dropped
	closed   atomic.Bool
	outbound chan outItem

	events chan Result
}

// outItem is an input chunk bound for the device, or with end set, the
// read error that stopped input
type outItem struct {
	data []byte
	end  bool
	err  error
}

// New creates a session over conn, reading from in and writing to out.
func New(conn Conn, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		conn:     conn,
		in:       in,
		out:      &syncWriter{w: out},
		log:      zap.NewNop(),
		bufSize:  defaultBufferSize,
		outbound: make(chan outItem, queueDepth),
		events:   make(chan Result, 4),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run relays until the first terminal event, applies the close policy for
// it and returns it. Cancelling ctx ends the session as Interrupted, and
// also bounds the drain after end of input.
//
// Input is read independently of device writes, so the cancel byte and
// ctx take effect even while a write to the device is stalled.
func (s *Session) Run(ctx context.Context) Result {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.log.Debug("session started", zap.Bool("echo", s.echo), zap.Int("buffer", s.bufSize))

	go s.pumpDevice(ctx)
	go s.pumpInput(ctx)
	go s.writeDevice(ctx)
	if s.hangupWatch != nil {
		go s.watchHangup(ctx)
	}

	var res Result
	select {
	case res = <-s.events:
	case <-parent.Done():
		res = Result{Reason: Interrupted}
	}
	cancel()

	s.finish(parent, res)
	return res
}

func (s *Session) report(res Result) {
	select {
	case s.events <- res:
	default:
	}
}

// pumpDevice copies device reads to the output
func (s *Session) pumpDevice(ctx context.Context) {
	buf := make([]byte, s.bufSize)
	for {
		n, err := s.conn.ReadContext(ctx, buf)
		if n > 0 {
			if _, werr := s.out.Write(buf[:n]); werr != nil {
				s.report(Result{Reason: OutputError, Err: fmt.Errorf("write output: %w", werr)})
				return
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, serial.ErrPortClosed) {
				s.report(Result{Reason: DeviceClosed})
				return
			}
			s.report(Result{Reason: DeviceError, Err: fmt.Errorf("read from port: %w", err)})
			return
		}
	}
}

// pumpInput queues input chunks for the device until the cancel byte, end
// of input or a failure
func (s *Session) pumpInput(ctx context.Context) {
	buf := make([]byte, s.bufSize)
	for {
		n, err := s.in.Read(buf)
		if n > 0 {
			if bytes.IndexByte(buf[:n], CancelByte) >= 0 {
				s.report(Result{Reason: Cancelled})
				return
			}
			if !s.enqueue(ctx, outItem{data: bytes.Clone(buf[:n])}) {
				return
			}
		}
		if err != nil {
			s.enqueue(ctx, outItem{end: true, err: err})
			return
		}
	}
}

func (s *Session) enqueue(ctx context.Context, item outItem) bool {
	select {
	case s.outbound <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// writeDevice writes queued chunks to the device in order, echoing each
// one once written. End of input is reported after every earlier chunk.
func (s *Session) writeDevice(ctx context.Context) {
	for {
		var item outItem
		select {
		case item = <-s.outbound:
		case <-ctx.Done():
			return
		}

		if item.end {
			if errors.Is(item.err, io.EOF) {
				s.report(Result{Reason: InputClosed})
			} else {
				s.report(Result{Reason: InputError, Err: fmt.Errorf("read input: %w", item.err)})
			}
			return
		}

		if err := s.forward(item.data); err != nil {
			if !errors.Is(err, errSessionDone) {
				s.report(Result{Reason: DeviceError, Err: err})
			}
			return
		}
		if s.echo && !s.closed.Load() {
			if _, err := s.out.Write(item.data); err != nil {
				s.report(Result{Reason: OutputError, Err: fmt.Errorf("write output: %w", err)})
				return
			}
		}
	}
}

var errSessionDone = errors.New("session finished")

func (s *Session) forward(chunk []byte) error {
	if s.closed.Load() {
		return errSessionDone
	}
	if _, err := s.conn.Write(chunk); err != nil {
		if s.closed.Load() {
			return errSessionDone
		}
		return fmt.Errorf("write to port: %w", err)
	}
	return nil
}

func (s *Session) watchHangup(ctx context.Context) {
	err := s.hangupWatch(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.report(Result{Reason: DeviceError, Err: fmt.Errorf("carrier watch: %w", err)})
		return
	}
	s.log.Info("carrier lost")
	s.report(Result{Reason: DeviceClosed})
}

// finish stops input forwarding and closes the connection as res requires.
// A write still in flight is released by the flush or the close.
func (s *Session) finish(ctx context.Context, res Result) {
	s.closed.Store(true)

	switch res.Reason {
	case InputClosed:
		if d, ok := s.conn.(drainer); ok {
			if err := d.Drain(ctx); err != nil {
				s.log.Warn("drain failed, discarding pending output", zap.Error(err))
				s.flushOutput()
			}
		}
		s.closeConn()
		s.log.Info("input closed")
	case Cancelled, Interrupted:
		s.flushOutput()
		s.closeConn()
		s.log.Info("session cancelled", zap.Stringer("reason", res.Reason))
	case DeviceClosed:
		// Releases the descriptor after a hangup; already closed is fine
		if err := s.conn.Close(); err != nil && !errors.Is(err, serial.ErrPortClosed) {
			s.log.Debug("close after hangup failed", zap.Error(err))
		}
		s.log.Info("port closed")
	case DeviceError:
		s.log.Error("port error", zap.Error(res.Err))
	default:
		s.closeConn()
		s.log.Error("session failed", zap.Stringer("reason", res.Reason), zap.Error(res.Err))
	}
}

func (s *Session) flushOutput() {
	if f, ok := s.conn.(outputFlusher); ok {
		if err := f.FlushOutput(); err != nil {
			s.log.Debug("flush failed", zap.Error(err))
		}
	}
}

func (s *Session) closeConn() {
	if err := s.conn.Close(); err != nil {
		s.log.Warn("close failed", zap.Error(err))
	}
}

// syncWriter writes each chunk whole so concurrent writers never interleave
// inside a chunk
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
