package rshell

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/rtolkacheva/rshell/parser"
)

// builtinFunc runs a built-in entirely in the shell process. The original
// shell forks a child for every built-in so it can be pipelined and write
// to a (possibly redirected) stdout, then has the parent separately mutate
// its own state. Built-ins are refused in any piped/backgrounded form
// (see Engine.ExecuteLine), so nothing here ever needs to produce output
// through a pipe fd the shell process doesn't already own; the two-actor
// parent/child split collapses to one function that both mutates state
// and writes to w.
type builtinFunc func(e *Engine, cmd *parser.Command, w io.Writer) int

var builtins = map[string]builtinFunc{
	"cd":   builtinCd,
	"jobs": builtinJobs,
	"fg":   builtinFg,
	"bg":   builtinBg,
	"exit": builtinExit,
}

func isBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func runBuiltin(e *Engine, cmd *parser.Command, w io.Writer) int {
	fn, ok := builtins[cmd.Name()]
	if !ok {
		return 1
	}
	return fn(e, cmd, w)
}

// builtinCd changes the shell's working directory. HOME is consulted when
// no argument is given.
func builtinCd(e *Engine, cmd *parser.Command, w io.Writer) int {
	dir := os.Getenv("HOME")
	if len(cmd.Args) > 1 {
		dir = cmd.Args[1]
	}
	if err := os.Chdir(dir); err != nil {
		fmt.Fprintf(w, "cd: %v\n", err)
		return 1
	}
	return 0
}

// builtinJobs prints every Valid job, clearing its NotifyStatus.
func builtinJobs(e *Engine, cmd *parser.Command, w io.Writer) int {
	for i, j := range e.table.Snapshot() {
		if j.State != JobValid {
			continue
		}
		fmt.Fprintln(w, jobRow(i+1, j))
		j.NotifyStatus = false
	}
	return 0
}

// builtinBg resumes stopped jobs in the background. With no arguments it
// targets the current (highest-numbered Valid) job.
func builtinBg(e *Engine, cmd *parser.Command, w io.Writer) int {
	targets, err := resolveJobTargets(e, cmd, w)
	if err != nil {
		return 1
	}
	code := 0
	for _, j := range targets {
		switch j.AggregateStatus() {
		case StatusRunning:
			fmt.Fprintf(w, "bg: job already running\n")
		case StatusTerminated:
			fmt.Fprintf(w, "bg: job has terminated\n")
			code = 1
		default:
			j.ForcedRunning = true
			if err := unix.Kill(-j.Pgid, unix.SIGCONT); err != nil {
				fmt.Fprintf(w, "bg: %v\n", err)
				code = 1
			}
		}
	}
	return code
}

// builtinFg brings the current (or numbered) job to the foreground.
func builtinFg(e *Engine, cmd *parser.Command, w io.Writer) int {
	targets, err := resolveJobTargets(e, cmd, w)
	if err != nil {
		return 1
	}
	if len(targets) != 1 {
		fmt.Fprintln(w, "fg: job specification required")
		return 1
	}
	job := targets[0]
	job.ForcedRunning = true
	if err := e.runForeground(job); err != nil {
		fmt.Fprintf(w, "fg: %v\n", err)
		return 1
	}
	return 0
}

func resolveJobTargets(e *Engine, cmd *parser.Command, w io.Writer) ([]*Job, error) {
	if len(cmd.Args) == 1 {
		e.table.Lock()
		_, j := e.table.HighestValidLocked()
		e.table.Unlock()
		if j == nil {
			fmt.Fprintf(w, "%s: no current job\n", cmd.Name())
			return nil, fmt.Errorf("no current job")
		}
		return []*Job{j}, nil
	}
	out := make([]*Job, 0, len(cmd.Args)-1)
	for _, arg := range cmd.Args[1:] {
		var n int
		if _, err := fmt.Sscanf(arg, "%d", &n); err != nil {
			fmt.Fprintf(w, "%s: %s: no such job\n", cmd.Name(), arg)
			return nil, err
		}
		e.table.Lock()
		j := e.table.ByNumberLocked(n)
		e.table.Unlock()
		if j == nil {
			fmt.Fprintf(w, "%s: %s: no such job\n", cmd.Name(), arg)
			return nil, fmt.Errorf("no such job %s", arg)
		}
		out = append(out, j)
	}
	return out, nil
}

// builtinExit requests shell teardown, refusing once (with a warning) if
// stopped jobs exist, per the "warning given" idempotence rule.
func builtinExit(e *Engine, cmd *parser.Command, w io.Writer) int {
	stopped := false
	for _, j := range e.table.Snapshot() {
		if j.State == JobValid && j.AggregateStatus() == StatusStopped {
			stopped = true
			break
		}
	}

	if stopped && !e.warningGiven {
		fmt.Fprintln(w, "There are stopped jobs")
		e.warningGiven = true
		return 1
	}

	for _, j := range e.table.Snapshot() {
		if j.State == JobValid && j.AggregateStatus() == StatusStopped {
			unix.Kill(-j.Pgid, unix.SIGTERM)
			unix.Kill(-j.Pgid, unix.SIGCONT)
		}
	}
	e.ExitRequested = true
	return 0
}
