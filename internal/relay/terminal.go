package relay

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// MakeRaw switches f to keystroke-level input when it is a terminal and
// returns a function restoring the previous mode. For anything else it does
// nothing.
//
// Output post-processing stays on so a bare \n from the device still starts
// a new line.
func MakeRaw(f *os.File) (restore func() error, err error) {
	return makeRaw(int(f.Fd()), keepOutputProcessing)
}

func makeRaw(fd int, setOutput func(fd int) error) (func() error, error) {
	if !term.IsTerminal(fd) {
		return func() error { return nil }, nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("set terminal raw mode: %w", err)
	}
	restore := func() error { return term.Restore(fd, state) }

	if err := setOutput(fd); err != nil {
		if rerr := restore(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore terminal: %w", rerr))
		}
		return nil, fmt.Errorf("set terminal output mode: %w", err)
	}
	return restore, nil
}

func keepOutputProcessing(fd int) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	termios.Oflag |= unix.OPOST | unix.ONLCR
	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}
