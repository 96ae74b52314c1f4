package rshell

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ioctlGetTermios/ioctlSetTermios name the termios ioctl requests; Linux
// exposes these as TCGETS/TCSETS via golang.org/x/sys/unix.
const (
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS
)

// Terminal owns the shell's controlling tty fd and the termios snapshot
// used to restore the shell's own line discipline after a foreground job
// releases the terminal. Grounded on original_source/execute_cmd.c's
// give_terminal_to/get_terminal_back.
type Terminal struct {
	fd      int
	saved   unix.Termios
	isTTY   bool
}

// OpenTerminal opens /dev/tty if stderr is not itself a tty (mirrors the
// original shell's fallback), and records whether job control is possible
// at all.
func OpenTerminal() (*Terminal, error) {
	fd := int(os.Stderr.Fd())
	isTTY := term.IsTerminal(fd)
	if !isTTY {
		f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			return &Terminal{fd: fd, isTTY: false}, nil
		}
		fd = int(f.Fd())
		isTTY = term.IsTerminal(fd)
	}
	t := &Terminal{fd: fd, isTTY: isTTY}
	if isTTY {
		saved, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
		if err != nil {
			return nil, fmt.Errorf("save termios: %w", err)
		}
		t.saved = *saved
	}
	return t, nil
}

// GiveTerminalTo hands the controlling terminal's process group to pgid,
// installing newAttrs as the active termios and returning the attributes
// that were in effect beforehand so the caller can restore them later.
func (t *Terminal) GiveTerminalTo(pgid int, newAttrs *unix.Termios) (unix.Termios, error) {
	if !t.isTTY {
		return unix.Termios{}, nil
	}
	old, err := unix.IoctlGetTermios(t.fd, ioctlGetTermios)
	if err != nil {
		return unix.Termios{}, fmt.Errorf("get termios: %w", err)
	}
	if newAttrs != nil {
		if err := unix.IoctlSetTermios(t.fd, ioctlSetTermios, newAttrs); err != nil {
			return unix.Termios{}, fmt.Errorf("set termios: %w", err)
		}
	}
	if err := unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid); err != nil {
		return unix.Termios{}, fmt.Errorf("tcsetpgrp: %w", err)
	}
	return *old, nil
}

// GetTerminalBack reverses GiveTerminalTo: reclaims the process group for
// the shell and restores savedAttrs.
func (t *Terminal) GetTerminalBack(savedAttrs unix.Termios) error {
	if !t.isTTY {
		return nil
	}
	shellPgid, err := unix.Getpgid(os.Getpid())
	if err != nil {
		return fmt.Errorf("getpgid: %w", err)
	}
	if err := unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, shellPgid); err != nil {
		return fmt.Errorf("tcsetpgrp: %w", err)
	}
	attrs := savedAttrs
	if err := unix.IoctlSetTermios(t.fd, ioctlSetTermios, &attrs); err != nil {
		return fmt.Errorf("restore termios: %w", err)
	}
	return nil
}

// Saved returns the shell's own termios snapshot, captured at startup.
func (t *Terminal) Saved() unix.Termios { return t.saved }

// IsInteractive reports whether job control (terminal handoff) is possible
// at all; a non-tty invocation degrades to running everything foreground
// without process-group terminal control.
func (t *Terminal) IsInteractive() bool { return t.isTTY }
