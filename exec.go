package rshell

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/rtolkacheva/rshell/parser"
)

type skipStrategy int

const (
	skipNone skipStrategy = iota
	skipOnFail
	skipOnSuccess
)

type lastResult int

const (
	resultSuccess lastResult = iota
	resultFail
)

// Engine is the execution engine: forks child processes into process
// groups, wires up pipes and redirections, hands the controlling terminal
// to the foreground job, and drives the short-circuit (&&/||) gate.
//
// Grounded on original_source/execute_cmd.c (execute_cmd,
// execute_cmd_internal, move_cmd_to_job, make_redirections) for the
// algorithm, and the teacher's pipeline_executor.go for the Go-idiomatic
// process-creation shape (os/exec.Cmd + os.Pipe instead of raw
// fork/execvp).
type Engine struct {
	table *JobTable
	term  *Terminal
	log   *zap.SugaredLogger

	skip skipStrategy
	last lastResult

	ExitRequested bool
	warningGiven  bool
}

func NewEngine(table *JobTable, term *Terminal, log *zap.SugaredLogger) *Engine {
	return &Engine{table: table, term: term, log: log}
}

// ExecuteLine runs every command the parser produced for one input line,
// threading the output pipe of each into the input of the next.
func (e *Engine) ExecuteLine(cmds []*parser.Command, line string) error {
	var prevRead *os.File

	for _, cmd := range cmds {
		if e.gate(cmd) {
			continue
		}

		var nextRead, pipeWrite *os.File
		if cmd.Flags.PipeOut {
			r, w, err := os.Pipe()
			if err != nil {
				return fmt.Errorf("%w: pipe: %v", ErrFatal, err)
			}
			nextRead, pipeWrite = r, w
		}

		if isBuiltin(cmd.Name()) {
			if cmd.Flags.PipeIn || cmd.Flags.PipeOut || cmd.Flags.Background {
				fmt.Fprintf(os.Stderr, "%v\n", fmt.Errorf("%s: %w", cmd.Name(), ErrNoJobControl))
				e.last = resultFail
			} else {
				code := runBuiltin(e, cmd, os.Stdout)
				if code == 0 {
					e.last = resultSuccess
				} else {
					e.last = resultFail
				}
			}
			if prevRead != nil {
				prevRead.Close()
			}
			if pipeWrite != nil {
				pipeWrite.Close()
			}
			prevRead = nextRead
			continue
		}

		if err := e.forkCommand(cmd, line, prevRead, pipeWrite); err != nil {
			fmt.Fprintf(os.Stderr, "rshell: %v\n", err)
			e.last = resultFail
		}

		if prevRead != nil {
			prevRead.Close()
		}
		if pipeWrite != nil {
			pipeWrite.Close()
		}
		prevRead = nextRead
	}

	return nil
}

// gate implements the short-circuit && / || strategy. Returns true if cmd
// should be skipped without being forked.
func (e *Engine) gate(cmd *parser.Command) bool {
	skip := e.skip != skipNone &&
		((e.skip == skipOnFail && e.last == resultFail) ||
			(e.skip == skipOnSuccess && e.last == resultSuccess))

	if !cmd.Flags.PipeOut {
		switch {
		case cmd.Flags.SkipNextOnFail:
			e.skip = skipOnFail
		case cmd.Flags.SkipNextOnSuccess:
			e.skip = skipOnSuccess
		default:
			e.skip = skipNone
		}
	}
	return skip
}

// forkCommand forks and execs one external command, placing it in the
// current job's process group and dispatching foreground/background mode
// once it is the pipeline's last stage.
func (e *Engine) forkCommand(cmd *parser.Command, line string, pipeIn, pipeOut *os.File) error {
	e.table.Lock()
	job := e.table.CurrentJobLocked(line)
	isLeader := job.Pgid == 0
	targetPgid := job.Pgid
	e.table.Unlock()

	execCmd := exec.Command(cmd.Name(), cmd.Args[1:]...)
	opened, err := applyRedirections(execCmd, cmd, pipeIn, pipeOut)
	if err != nil {
		for _, f := range opened {
			f.Close()
		}
		return err
	}
	execCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: targetPgid}

	startErr := execCmd.Start()
	// The child gets its own dup'd copy of each fd at Start(); the parent's
	// handle is now only a leak if kept open.
	for _, f := range opened {
		f.Close()
	}
	if startErr != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), startErr)
	}

	pid := execCmd.Process.Pid
	pgid := targetPgid
	if isLeader {
		pgid = pid
	}
	// Both parent and child call setpgid; whoever wins, the group exists
	// before the child execs.
	_ = unix.Setpgid(pid, pgid)

	child := *cmd
	child.Pid = pid
	child.State = parser.StateContinued

	e.table.Lock()
	job.Pgid = pgid
	job.Pid = pid
	job.Pipeline = append(job.Pipeline, &child)
	if cmd.Flags.PipeOut {
		job.State = JobConstructing
	} else {
		job.State = JobValid
	}
	e.table.Unlock()

	if cmd.Flags.PipeOut {
		return nil
	}

	if cmd.Flags.Background {
		fmt.Printf("[%d]\t%d\n", e.jobNumber(job), pid)
		return nil
	}

	return e.runForeground(job)
}

// jobNumber returns job's 1-based index.
func (e *Engine) jobNumber(job *Job) int {
	for i, j := range e.table.Snapshot() {
		if j == job {
			return i + 1
		}
	}
	return 0
}

// runForeground gives the terminal to job's process group, resumes it with
// SIGCONT, waits for every live command in its pipeline via the SIGCHLD
// handshake, then reclaims the terminal.
func (e *Engine) runForeground(job *Job) error {
	var saved unix.Termios
	haveTerm := e.term.IsInteractive()
	if haveTerm {
		var err error
		saved, err = e.term.GiveTerminalTo(job.Pgid, &job.Termios)
		if err != nil {
			return fmt.Errorf("give terminal: %w", err)
		}
	}
	if err := unix.Kill(-job.Pgid, unix.SIGCONT); err != nil && err != unix.ESRCH {
		e.log.Warnw("sigcont failed", "pgid", job.Pgid, "err", err)
	}

	for _, cmd := range job.Pipeline {
		if !isTerminal(cmd.State) {
			cmd.State = parser.StateContinued
		}
	}

	for _, cmd := range job.Pipeline {
		if isTerminal(cmd.State) {
			continue
		}
		status := e.waitFor(cmd.Pid)
		cmd.State = stateFromWaitStatus(status, status.Continued())
		if cmd.Pid == job.Pid {
			job.Status = status
		}
	}

	if haveTerm {
		if err := e.term.GetTerminalBack(saved); err != nil {
			e.log.Warnw("get terminal back failed", "err", err)
		}
	}

	e.table.Lock()
	switch job.AggregateStatus() {
	case StatusStopped:
		job.NotifyStatus = true
	case StatusTerminated:
		if job.Status.Exited() && job.Status.ExitStatus() == 0 {
			e.last = resultSuccess
		} else {
			e.last = resultFail
		}
	}
	e.table.Unlock()

	return nil
}

// waitFor blocks until the SIGCHLD translator delivers pid's status down
// the handshake channel.
func (e *Engine) waitFor(pid int) unix.WaitStatus {
	e.table.Lock()
	ch := e.table.beginWaitLocked(pid)
	e.table.Unlock()

	status := <-ch

	e.table.Lock()
	e.table.endWaitLocked()
	e.table.Unlock()
	return status
}

func isTerminal(s parser.ChildState) bool {
	switch s {
	case parser.StateExited, parser.StateDumped, parser.StateSignaled:
		return true
	}
	return false
}

// applyRedirections installs a command's explicit redirections plus any
// implicit pipe fd, in ascending fd order, leaving fd 0/1/2 defaulted to
// the shell's own streams when neither applies. It returns every file it
// opened so the caller can close the parent's handle once the child has
// its own dup'd copy (Start dups directly since these are plain *os.File
// values, not pipes os/exec needs to keep open to copy through).
func applyRedirections(execCmd *exec.Cmd, cmd *parser.Command, pipeIn, pipeOut *os.File) ([]*os.File, error) {
	stdinSet, stdoutSet := false, false
	var opened []*os.File

	for _, fd := range cmd.Redirections.Fds() {
		r, _ := cmd.Redirections.Get(fd)
		f, err := os.OpenFile(r.Path, r.Flags, os.FileMode(r.Mode))
		if err != nil {
			return opened, fmt.Errorf("%s: %w", r.Path, err)
		}
		opened = append(opened, f)
		assignFd(execCmd, fd, f)
		switch fd {
		case 0:
			stdinSet = true
		case 1:
			stdoutSet = true
		}
	}

	if cmd.Flags.PipeIn && !stdinSet {
		execCmd.Stdin = pipeIn
	}
	if cmd.Flags.PipeOut && !stdoutSet {
		execCmd.Stdout = pipeOut
	}

	if execCmd.Stdin == nil {
		execCmd.Stdin = os.Stdin
	}
	if execCmd.Stdout == nil {
		execCmd.Stdout = os.Stdout
	}
	if execCmd.Stderr == nil {
		execCmd.Stderr = os.Stderr
	}
	return opened, nil
}

func assignFd(c *exec.Cmd, fd int, f *os.File) {
	switch fd {
	case 0:
		c.Stdin = f
	case 1:
		c.Stdout = f
	case 2:
		c.Stderr = f
	default:
		for len(c.ExtraFiles) < fd-2 {
			c.ExtraFiles = append(c.ExtraFiles, nil)
		}
		c.ExtraFiles[fd-3] = f
	}
}
