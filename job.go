package rshell

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/rtolkacheva/rshell/parser"
)

// JobState is a job's lifecycle stage within the table, not its runtime
// status (see JobStatus below).
type JobState int

const (
	JobInvalid JobState = iota
	JobConstructing
	JobValid
)

// JobStatus is the aggregate Running/Stopped/Terminated partition derived
// from a job's pipeline. Terminated is further subdivided for display only
// by Job.statusLabel.
type JobStatus int

const (
	StatusRunning JobStatus = iota
	StatusStopped
	StatusTerminated
)

// statusIndent matches the original shell's STATUS_INDENT column width for
// the jobs/fg status field.
const statusIndent = 15

// Job is a pipeline executed as one process group.
type Job struct {
	Pgid int
	Pid  int // tail command's pid; its wait status is the job's result

	Status unix.WaitStatus

	Pipeline []*parser.Command
	Line     string // originating line text, kept for jobs/fg display

	State JobState

	Termios unix.Termios // saved termios the job should resume with

	NotifyStatus  bool
	ForcedRunning bool
}

func newJob(line string) *Job {
	return &Job{State: JobInvalid, Line: line}
}

// AggregateStatus derives Running/Stopped/Terminated from the pipeline's
// per-command states, per spec §4.5's precedence.
func (j *Job) AggregateStatus() JobStatus {
	if j.ForcedRunning {
		return StatusRunning
	}
	stopped := false
	for _, c := range j.Pipeline {
		switch c.State {
		case parser.StateContinued, parser.StateRunning:
			return StatusRunning
		case parser.StateStopped:
			stopped = true
		}
	}
	if stopped {
		return StatusStopped
	}
	return StatusTerminated
}

// statusLabel renders the Running/Stopped/Exit N/Done/Killed/Terminated
// subdivision used by jobs/fg.
func (j *Job) statusLabel() string {
	switch j.AggregateStatus() {
	case StatusRunning:
		return "Running"
	case StatusStopped:
		return "Stopped"
	}
	switch {
	case j.Status.Signaled():
		return "Killed"
	case j.Status.Exited() && j.Status.ExitStatus() != 0:
		return fmt.Sprintf("Exit %d", j.Status.ExitStatus())
	case j.Status.Exited():
		return "Done"
	default:
		return "Terminated"
	}
}

// lineRendering reconstructs argv, redirections and a trailing "&" the way
// jobs/fg display a job, rather than replaying the raw input line verbatim
// (pipelines display per-command redirections too).
func (j *Job) lineRendering() string {
	parts := make([]string, 0, len(j.Pipeline))
	for _, c := range j.Pipeline {
		parts = append(parts, c.String())
	}
	s := strings.Join(parts, " | ")
	if j.AggregateStatus() == StatusRunning && len(j.Pipeline) > 0 &&
		j.Pipeline[len(j.Pipeline)-1].Flags.Background {
		s += " &"
	}
	return s
}

// String is the "[i]\t<status>\t<line>" row minus the job number, which the
// job table prefixes (it alone knows the job's index).
func (j *Job) String() string {
	return fmt.Sprintf("%-*s\t%s", statusIndent, j.statusLabel(), j.lineRendering())
}
