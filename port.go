package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Port represents a serial port connection interface
type Port interface {
	Close() error
	Write(data []byte) (int, error)
	ReadContext(ctx context.Context, buf []byte) (int, error)
	Drain(ctx context.Context) error
	FlushOutput() error

	// Modem signal monitoring
	GetModemSignals() (ModemSignals, error)
	WaitForSignalChangeContext(ctx context.Context, mask SignalMask) (ModemSignals, SignalMask, error)
}

// port is the concrete implementation of the Port interface
type port struct {
	mu     sync.RWMutex
	fd     int
	device string
	config Config
	closed bool
}

// Ensure port implements Port interface at compile time
var _ Port = (*port)(nil)

// pollInterval bounds how long a single poll(2) holds the port lock, and
// so how long Close can be kept waiting by a pending Read or Write.
const pollInterval = 100

// drainInterval is how often Drain samples the output queue.
const drainInterval = 10 * time.Millisecond

// ModemSignals represents modem control signal states
type ModemSignals struct {
	CTS bool // Clear To Send
	DSR bool // Data Set Ready
	RI  bool // Ring Indicator
	DCD bool // Data Carrier Detect
	RTS bool // Request To Send
	DTR bool // Data Terminal Ready
}

// SignalMask identifies which signals to monitor
type SignalMask int

const (
	SignalCTS SignalMask = 1 << iota
	SignalDSR
	SignalRI
	SignalDCD
)

// standardBaudRates maps the rates that have a termios Bxxx constant
var standardBaudRates = map[int]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

// getBaudRate converts an integer baud rate to the unix constant.
// ErrInvalidBaudRate means the rate needs BOTHER, or is not positive.
func getBaudRate(rate int) (uint32, error) {
	if b, ok := standardBaudRates[rate]; ok {
		return b, nil
	}
	return 0, ErrInvalidBaudRate
}

// getModemStatus retrieves modem control signals using unix package
func getModemStatus(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCMGET)
}

// setDTR sets DTR signal state
func setDTR(fd int, state bool) error {
	if state {
		return unix.IoctlSetInt(fd, unix.TIOCMBIS, unix.TIOCM_DTR)
	}
	return unix.IoctlSetInt(fd, unix.TIOCMBIC, unix.TIOCM_DTR)
}

// setRTSSignal sets RTS signal state
func setRTSSignal(fd int, state bool) error {
	if state {
		return unix.IoctlSetInt(fd, unix.TIOCMBIS, unix.TIOCM_RTS)
	}
	return unix.IoctlSetInt(fd, unix.TIOCMBIC, unix.TIOCM_RTS)
}

// signalMaskToTIOCM converts SignalMask to unix TIOCM bits
func signalMaskToTIOCM(mask SignalMask) int {
	var bits int
	if mask&SignalCTS != 0 {
		bits |= unix.TIOCM_CTS
	}
	if mask&SignalDSR != 0 {
		bits |= unix.TIOCM_DSR
	}
	if mask&SignalRI != 0 {
		bits |= unix.TIOCM_RI
	}
	if mask&SignalDCD != 0 {
		bits |= unix.TIOCM_CAR
	}
	return bits
}

// detectSignalChanges compares old and new signal states to determine what changed
func detectSignalChanges(oldStatus, newStatus int) SignalMask {
	var changed SignalMask
	if (oldStatus&unix.TIOCM_CTS != 0) != (newStatus&unix.TIOCM_CTS != 0) {
		changed |= SignalCTS
	}
	if (oldStatus&unix.TIOCM_DSR != 0) != (newStatus&unix.TIOCM_DSR != 0) {
		changed |= SignalDSR
	}
	if (oldStatus&unix.TIOCM_RI != 0) != (newStatus&unix.TIOCM_RI != 0) {
		changed |= SignalRI
	}
	if (oldStatus&unix.TIOCM_CAR != 0) != (newStatus&unix.TIOCM_CAR != 0) {
		changed |= SignalDCD
	}
	return changed
}

func statusToSignals(status int) ModemSignals {
	return ModemSignals{
		CTS: status&unix.TIOCM_CTS != 0,
		DSR: status&unix.TIOCM_DSR != 0,
		RI:  status&unix.TIOCM_RI != 0,
		DCD: status&unix.TIOCM_CAR != 0,
		RTS: status&unix.TIOCM_RTS != 0,
		DTR: status&unix.TIOCM_DTR != 0,
	}
}

// openError maps errno values from open(2) onto the package sentinels
func openError(device string, err error) error {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, device)
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("%w: %s", ErrDeviceInUse, device)
	default:
		return fmt.Errorf("failed to open %s: %w", device, err)
	}
}

// Open opens a serial port with the given device path and options
func Open(device string, opts ...Option) (Port, error) {
	config, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	// The fd stays non-blocking: reads and writes wait in poll(2) so that
	// Close is never stuck behind a syscall that cannot return.
	flags := unix.O_RDWR | unix.O_NOCTTY | unix.O_NONBLOCK | unix.O_CLOEXEC

	fd, err := unix.Open(device, flags, 0)
	if err != nil {
		return nil, openError(device, err)
	}

	if config.Exclusive {
		if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceInUse, device, err)
		}
	}

	if err := configurePort(fd, config); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// Apply initial signal states if configured
	if config.InitialRTS != nil {
		if err := setRTSSignal(fd, *config.InitialRTS); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set initial RTS: %w", err)
		}
	}
	if config.InitialDTR != nil {
		if err := setDTR(fd, *config.InitialDTR); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set initial DTR: %w", err)
		}
	}

	return &port{
		fd:     fd,
		device: device,
		config: config,
	}, nil
}

// applyFraming sets the raw-mode line discipline and the character framing
// bits of config on termios. The baud rate is handled by configurePort.
func applyFraming(termios *unix.Termios, config Config) {
	termios.Cflag &^= unix.CSIZE | unix.CSTOPB | unix.PARENB | unix.PARODD | unix.CMSPAR | unix.CRTSCTS
	termios.Cflag |= unix.CREAD | unix.CLOCAL
	termios.Iflag = 0 // No input processing
	termios.Oflag = 0 // No output processing
	termios.Lflag = 0 // No line processing (raw mode)

	// Reads are paced by poll(2); once readable, return what is there
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	switch config.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	// 1.5 stop bits is CSTOPB with 5 data bits; the UART decides
	if config.StopBits != StopBits1 {
		termios.Cflag |= unix.CSTOPB
	}

	switch config.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	case ParityMark:
		termios.Cflag |= unix.PARENB | unix.CMSPAR | unix.PARODD
	case ParitySpace:
		termios.Cflag |= unix.PARENB | unix.CMSPAR
	}
	if config.Parity != ParityNone {
		termios.Iflag |= unix.INPCK
	}

	if config.FlowControl == FlowControlRTSCTS {
		termios.Cflag |= unix.CRTSCTS
	}
}

// configurePort configures the serial port using clean unix package calls
func configurePort(fd int, config Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS2)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	applyFraming(termios, config)

	termios.Cflag &^= unix.CBAUD
	if baudRate, err := getBaudRate(config.BaudRate); err == nil {
		termios.Cflag |= baudRate
		termios.Ispeed = baudRate
		termios.Ospeed = baudRate
	} else {
		// Non-standard rate: the driver reads the speed fields verbatim
		termios.Cflag |= unix.BOTHER
		termios.Ispeed = uint32(config.BaudRate)
		termios.Ospeed = uint32(config.BaudRate)
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS2, termios); err != nil {
		return fmt.Errorf("%w: failed to set termios: %v", ErrInvalidConfig, err)
	}

	return nil
}

// Close closes the serial port
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	err := unix.Close(p.fd)
	p.closed = true
	return err
}

// read waits up to timeoutMs for data. A timeout returns (0, nil); a hangup
// on the line returns io.EOF.
func (p *port) read(buf []byte, timeoutMs int) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("poll %s: %w", p.device, err)
	}
	if n == 0 {
		return 0, nil
	}

	revents := fds[0].Revents
	switch {
	case revents&unix.POLLNVAL != 0:
		return 0, ErrPortClosed
	case revents&unix.POLLERR != 0:
		return 0, fmt.Errorf("poll %s: device error", p.device)
	case revents&unix.POLLIN == 0 && revents&unix.POLLHUP != 0:
		return 0, io.EOF
	}

	for {
		n, err = unix.Read(p.fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		break
	}
	if errors.Is(err, unix.EAGAIN) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", p.device, err)
	}
	if n == 0 {
		// Readable with nothing to read is a hangup
		return 0, io.EOF
	}
	return n, nil
}

// ReadContext blocks until data arrives, the port fails, or ctx is done
func (p *port) ReadContext(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := p.read(buf, pollInterval)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// Write writes all of data to the serial port. It returns ErrPortClosed,
// with the count written so far, once the port is closed under it.
func (p *port) Write(data []byte) (int, error) {
	written := 0
	for written < len(data) {
		n, err := p.writeOnce(data[written:])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// writeOnce makes a single non-blocking write, waiting up to pollInterval
// for room in the output queue when it is full.
func (p *port) writeOnce(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	n, err := unix.Write(p.fd, data)
	if n < 0 {
		n = 0
	}
	switch {
	case err == nil, errors.Is(err, unix.EINTR):
		return n, nil
	case errors.Is(err, unix.EAGAIN):
	default:
		return n, fmt.Errorf("write %s: %w", p.device, err)
	}

	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLOUT}}
	if _, err := unix.Poll(fds, pollInterval); err != nil && !errors.Is(err, unix.EINTR) {
		return n, fmt.Errorf("poll %s: %w", p.device, err)
	}
	if fds[0].Revents&unix.POLLNVAL != 0 {
		return n, ErrPortClosed
	}
	return n, nil
}

// GetModemSignals returns current state of all modem control signals
func (p *port) GetModemSignals() (ModemSignals, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ModemSignals{}, ErrPortClosed
	}

	status, err := getModemStatus(p.fd)
	if err != nil {
		return ModemSignals{}, err
	}

	return statusToSignals(status), nil
}

// WaitForSignalChangeContext blocks until any monitored signal changes state
// or ctx is done. Returns new signal states and which signal(s) changed.
func (p *port) WaitForSignalChangeContext(ctx context.Context, mask SignalMask) (ModemSignals, SignalMask, error) {
	if mask == 0 {
		return ModemSignals{}, 0, ErrInvalidSignalMask
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ModemSignals{}, 0, ErrPortClosed
	}
	fd := p.fd
	p.mu.RUnlock()

	// Check if context is already cancelled
	select {
	case <-ctx.Done():
		return ModemSignals{}, 0, ctx.Err()
	default:
	}

	// Get initial signal state
	oldStatus, err := getModemStatus(fd)
	if err != nil {
		return ModemSignals{}, 0, err
	}

	tiocmBits := signalMaskToTIOCM(mask)

	type waitResult struct {
		newStatus int
		err       error
	}
	resultCh := make(chan waitResult, 1)

	// TIOCMIWAIT cannot be interrupted, so the wait runs on its own goroutine
	go func() {
		err := unix.IoctlSetInt(fd, unix.TIOCMIWAIT, tiocmBits)
		if err != nil {
			resultCh <- waitResult{err: err}
			return
		}

		newStatus, err := getModemStatus(fd)
		resultCh <- waitResult{newStatus: newStatus, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			return ModemSignals{}, 0, result.err
		}
		changed := detectSignalChanges(oldStatus, result.newStatus)
		return statusToSignals(result.newStatus), changed, nil

	case <-ctx.Done():
		return ModemSignals{}, 0, ctx.Err()
	}
}

// Drain waits until the kernel output queue is empty, the port is closed,
// or ctx is done.
func (p *port) Drain(ctx context.Context) error {
	for {
		pending, err := p.outputQueued()
		if err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(drainInterval):
		}
	}
}

func (p *port) outputQueued() (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	n, err := unix.IoctlGetInt(p.fd, unix.TIOCOUTQ)
	if err != nil {
		return 0, fmt.Errorf("output queue %s: %w", p.device, err)
	}
	return n, nil
}

// FlushOutput discards any unwritten output data
func (p *port) FlushOutput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCOFLUSH)
}
