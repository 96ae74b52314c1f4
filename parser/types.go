// Package parser tokenizes a single input line into a pipeline of commands.
//
// The scanning algorithm (operator handling, fd-prefix lookback, first/last
// -wins redirection insert) is a direct port of rtolkacheva/rshell's
// parseline.c; the ordered-map/vector containers that file builds by hand
// are replaced with native Go slices and maps.
package parser

import (
	"fmt"
	"os"
)

// RedirectionKind distinguishes the two shapes a Redirection can take.
type RedirectionKind int

const (
	// RedirectOpen resolves Path with Flags/Mode at execution time.
	RedirectOpen RedirectionKind = iota
	// RedirectDup duplicates SourceFd onto Fd.
	RedirectDup
)

// Redirection describes one fd to be installed in a child before exec.
type Redirection struct {
	Fd    int
	Kind  RedirectionKind
	Path  string
	Flags int // os.O_* flags, also consulted for display
	Mode  uint32

	SourceFd int // valid when Kind == RedirectDup
}

// String renders a redirection the way `jobs`/`fg` display them: "fd> file".
func (r *Redirection) String() string {
	op := "<"
	switch {
	case r.Flags&os.O_APPEND != 0:
		op = ">>"
	case r.Flags&os.O_WRONLY != 0:
		op = ">"
	}
	if r.Kind == RedirectDup {
		return fmt.Sprintf("%d%s&%d", r.Fd, op, r.SourceFd)
	}
	return fmt.Sprintf("%d%s %s", r.Fd, op, r.Path)
}

// RedirectionMap is an ordered fd -> Redirection mapping. Keys are unique;
// iteration is always ascending by fd. Insertion supports two disciplines:
// first-wins (used for "<") and last-wins (used for ">"/">>").
type RedirectionMap struct {
	entries map[int]*Redirection
}

func newRedirectionMap() *RedirectionMap {
	return &RedirectionMap{entries: make(map[int]*Redirection)}
}

// InsertFirstWins adds r unless fd is already present.
func (m *RedirectionMap) InsertFirstWins(r *Redirection) {
	if _, ok := m.entries[r.Fd]; ok {
		return
	}
	m.entries[r.Fd] = r
}

// InsertLastWins adds r, overwriting any existing entry for the same fd.
func (m *RedirectionMap) InsertLastWins(r *Redirection) {
	m.entries[r.Fd] = r
}

// Get returns the redirection installed for fd, if any.
func (m *RedirectionMap) Get(fd int) (*Redirection, bool) {
	r, ok := m.entries[fd]
	return r, ok
}

// Len returns the number of distinct fds with a redirection.
func (m *RedirectionMap) Len() int {
	return len(m.entries)
}

// Fds returns the redirected fds in ascending order.
func (m *RedirectionMap) Fds() []int {
	fds := make([]int, 0, len(m.entries))
	for fd := range m.entries {
		fds = append(fds, fd)
	}
	// small N, insertion sort keeps this dependency-free and allocation-light
	for i := 1; i < len(fds); i++ {
		for j := i; j > 0 && fds[j-1] > fds[j]; j-- {
			fds[j-1], fds[j] = fds[j], fds[j-1]
		}
	}
	return fds
}

// ChildState mirrors the wait-status categories a Command can be in.
type ChildState int

const (
	// StateContinued is the initial value: "not yet reaped since last start".
	StateContinued ChildState = iota
	StateRunning
	StateStopped
	StateExited
	StateDumped
	StateSignaled
)

// Flags customizes how a Command participates in its pipeline/job.
type Flags struct {
	Background        bool
	PipeIn            bool
	PipeOut           bool
	SkipNextOnSuccess bool
	SkipNextOnFail    bool
}

// Command is one parsed pipeline stage plus the runtime fields the
// execution engine fills in after forking.
type Command struct {
	Args         []string
	Redirections *RedirectionMap
	Flags        Flags

	// Runtime fields. The execution engine sets Pid and State; nothing in
	// this module fills in ExitCode or ExitSignal.
	Pid        int
	State      ChildState
	ExitCode   int
	ExitSignal string
}

func newCommand() *Command {
	return &Command{Redirections: newRedirectionMap(), State: StateContinued}
}

// Empty reports whether the command has no program name yet.
func (c *Command) Empty() bool {
	return len(c.Args) == 0
}

// Name returns the program name (Args[0]), or "" if Empty.
func (c *Command) Name() string {
	if c.Empty() {
		return ""
	}
	return c.Args[0]
}

// String renders the command's argv and redirections for job display, e.g.
// "echo hi 1> out.txt".
func (c *Command) String() string {
	s := ""
	for i, a := range c.Args {
		if i > 0 {
			s += " "
		}
		s += a
	}
	for _, fd := range c.Redirections.Fds() {
		r, _ := c.Redirections.Get(fd)
		if s != "" {
			s += " "
		}
		s += r.String()
	}
	return s
}
