package parser

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrRedirection marks a redirection validation failure (missing file, fd
// out of range) as distinct from a plain syntax error, per the shell's
// error classification. rshell.ErrRedirection aliases this value, since
// parser cannot import rshell without a cycle.
var ErrRedirection = errors.New("redirection error")

const fileOpenMode = 0664

const (
	stdinFd  = 0
	stdoutFd = 1
)

// delimiters separate tokens; they double as operator characters.
const delimiters = "|&<>; \f\n\r\t\v"

func isDelim(b byte) bool {
	return strings.IndexByte(delimiters, b) >= 0
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\f', '\n', '\r', '\t', '\v':
		return true
	}
	return false
}

// scanner walks a single input line left to right, building up Commands.
type scanner struct {
	s   string
	pos int

	cur        *Command
	out        []*Command
	lastPushed bool // last step was an argument push, with no intervening whitespace
	lastArgEnd int  // index right after the last pushed argument's last byte
}

// Parse tokenizes line into an ordered sequence of Commands. An empty or
// all-whitespace line yields (nil, nil): a no-op, not an error.
func Parse(line string) ([]*Command, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	sc := &scanner{s: line, cur: newCommand()}

	for sc.pos < len(sc.s) {
		sc.skipSpace()
		if sc.pos >= len(sc.s) {
			break
		}

		switch c := sc.s[sc.pos]; c {
		case '<':
			if err := sc.redirectIn(); err != nil {
				return nil, err
			}
		case '>':
			if err := sc.redirectOut(); err != nil {
				return nil, err
			}
		case '|':
			if err := sc.operatorPipe(); err != nil {
				return nil, err
			}
		case ';':
			if err := sc.operatorSeq(); err != nil {
				return nil, err
			}
		case '&':
			if err := sc.operatorBackground(); err != nil {
				return nil, err
			}
		default:
			sc.pushArg()
		}
	}

	if !sc.cur.Empty() {
		sc.out = append(sc.out, sc.cur)
	}

	return sc.out, nil
}

func (sc *scanner) skipSpace() {
	for sc.pos < len(sc.s) && isSpace(sc.s[sc.pos]) {
		sc.pos++
	}
}

// pushArg consumes one whitespace/delimiter-terminated token as an argument.
func (sc *scanner) pushArg() {
	start := sc.pos
	for sc.pos < len(sc.s) && !isDelim(sc.s[sc.pos]) {
		sc.pos++
	}
	sc.cur.Args = append(sc.cur.Args, sc.s[start:sc.pos])
	sc.lastPushed = true
	sc.lastArgEnd = sc.pos
}

// adjacentFd checks whether the argument just pushed sits immediately (no
// whitespace) before the operator at sc.pos, and if so, whether it parses
// entirely as a decimal integer. On success it pops the argument and
// returns the fd and true.
func (sc *scanner) adjacentFd() (int, bool) {
	if !sc.lastPushed || sc.lastArgEnd != sc.pos {
		return 0, false
	}
	args := sc.cur.Args
	if len(args) == 0 {
		return 0, false
	}
	last := args[len(args)-1]
	fd, err := strconv.Atoi(last)
	if err != nil {
		return 0, false
	}
	sc.cur.Args = args[:len(args)-1]
	return fd, true
}

func (sc *scanner) redirectIn() error {
	fd, hasFd := sc.adjacentFd()
	sc.pos++ // consume '<'

	rwfile := false
	if sc.pos < len(sc.s) && sc.s[sc.pos] == '>' {
		rwfile = true
		sc.pos++
	}

	sc.skipSpace()
	path, err := sc.readFilename()
	if err != nil {
		return err
	}

	flags := os.O_RDONLY
	if err := tryOpen(path, flags); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRedirection, path, err)
	}

	targetFd := stdinFd
	if hasFd {
		targetFd = fd
	}
	if err := checkFdLimit(targetFd); err != nil {
		return fmt.Errorf("%w: %v", ErrRedirection, err)
	}

	r := &Redirection{Fd: targetFd, Kind: RedirectOpen, Path: path, Flags: flags, Mode: fileOpenMode}
	sc.cur.Redirections.InsertFirstWins(r)

	if rwfile {
		// TODO: real <> support; downgraded to plain input redirection.
		fmt.Fprintf(os.Stderr, "rshell: does not support <>. %s was added as input file\n", path)
	}

	sc.lastPushed = false
	return nil
}

func (sc *scanner) redirectOut() error {
	fd, hasFd := sc.adjacentFd()
	sc.pos++ // consume '>'

	appendMode := false
	if sc.pos < len(sc.s) && sc.s[sc.pos] == '>' {
		appendMode = true
		sc.pos++
	}

	sc.skipSpace()
	path, err := sc.readFilename()
	if err != nil {
		return err
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	if err := tryOpen(path, flags); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRedirection, path, err)
	}

	targetFd := stdoutFd
	if hasFd {
		targetFd = fd
	}
	if err := checkFdLimit(targetFd); err != nil {
		return fmt.Errorf("%w: %v", ErrRedirection, err)
	}

	r := &Redirection{Fd: targetFd, Kind: RedirectOpen, Path: path, Flags: flags, Mode: fileOpenMode}
	sc.cur.Redirections.InsertLastWins(r)

	sc.lastPushed = false
	return nil
}

func (sc *scanner) readFilename() (string, error) {
	if sc.pos >= len(sc.s) {
		return "", fmt.Errorf("%w: unspecified redirection", ErrRedirection)
	}
	start := sc.pos
	for sc.pos < len(sc.s) && !isDelim(sc.s[sc.pos]) {
		sc.pos++
	}
	if sc.pos == start {
		return "", fmt.Errorf("%w: unspecified redirection", ErrRedirection)
	}
	return sc.s[start:sc.pos], nil
}

func (sc *scanner) operatorPipe() error {
	if sc.cur.Empty() {
		return fmt.Errorf("syntax error: no command before |")
	}
	sc.pos++
	if sc.pos < len(sc.s) && sc.s[sc.pos] == '|' {
		sc.pos++
		sc.cur.Flags.SkipNextOnSuccess = true
	} else {
		sc.cur.Flags.PipeOut = true
	}
	sc.flush()
	return nil
}

func (sc *scanner) operatorSeq() error {
	if sc.cur.Empty() {
		return fmt.Errorf("syntax error: no command before ;")
	}
	sc.pos++
	sc.flush()
	return nil
}

func (sc *scanner) operatorBackground() error {
	if sc.cur.Empty() {
		return fmt.Errorf("syntax error: no command before &")
	}
	sc.pos++
	if sc.pos < len(sc.s) && sc.s[sc.pos] == '&' {
		sc.pos++
		sc.cur.Flags.SkipNextOnFail = true
	} else {
		sc.cur.Flags.Background = true
	}
	sc.flush()
	return nil
}

// flush appends the current command to out and starts a new one, carrying
// pipe_in forward when the flushed command had pipe_out set.
func (sc *scanner) flush() {
	pipeOut := sc.cur.Flags.PipeOut
	sc.out = append(sc.out, sc.cur)

	next := newCommand()
	if pipeOut {
		next.Flags.PipeIn = true
	}
	sc.cur = next
	sc.lastPushed = false
}

func tryOpen(path string, flags int) error {
	f, err := os.OpenFile(path, flags, fileOpenMode)
	if err != nil {
		return err
	}
	return f.Close()
}

func checkFdLimit(fd int) error {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return fmt.Errorf("getrlimit: %w", err)
	}
	if uint64(fd) >= rlimit.Cur {
		return fmt.Errorf("%d: bad file descriptor", fd)
	}
	return nil
}
