package rshell

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rtolkacheva/rshell/parser"
)

// JobTable is the live, ordered job list plus the state the SIGCHLD
// handshake shares with the foreground waiter. Its mutex stands in for the
// blocked-SIGCHLD critical section the original shell uses: Go delivers
// signals to an ordinary goroutine rather than interrupting arbitrary code,
// so every place that would "block SIGCHLD" here takes jt.mu instead.
type JobTable struct {
	mu   sync.Mutex
	jobs []*Job

	waitedPid   int
	waitedHit   bool
	waitCh      chan unix.WaitStatus
	outstanding bool
}

func NewJobTable() *JobTable {
	return &JobTable{waitCh: make(chan unix.WaitStatus, 1)}
}

// Lock/Unlock let callers extend the critical section across several table
// operations plus non-table work (e.g. the fork sequence in exec.go).
func (jt *JobTable) Lock()   { jt.mu.Lock() }
func (jt *JobTable) Unlock() { jt.mu.Unlock() }

// CurrentJobLocked implements "current-job acquisition": reuse the last job
// if it is not yet Valid, otherwise append a fresh Invalid one. Must be
// called with jt locked.
func (jt *JobTable) CurrentJobLocked(line string) *Job {
	if n := len(jt.jobs); n > 0 && jt.jobs[n-1].State != JobValid {
		return jt.jobs[n-1]
	}
	j := newJob(line)
	jt.jobs = append(jt.jobs, j)
	return j
}

// HighestValidLocked returns the highest-numbered Valid job (1-based jobno)
// for bg/fg with no argument, per the "current job" glossary entry.
func (jt *JobTable) HighestValidLocked() (int, *Job) {
	for i := len(jt.jobs) - 1; i >= 0; i-- {
		if jt.jobs[i].State == JobValid {
			return i + 1, jt.jobs[i]
		}
	}
	return 0, nil
}

// ByNumberLocked returns the job at 1-based jobno n.
func (jt *JobTable) ByNumberLocked(n int) *Job {
	if n < 1 || n > len(jt.jobs) {
		return nil
	}
	return jt.jobs[n-1]
}

// FindByPidLocked locates the job and command owning pid, whether the job
// is Constructing or already Valid.
func (jt *JobTable) FindByPidLocked(pid int) (*Job, *parser.Command) {
	for _, j := range jt.jobs {
		for _, c := range j.Pipeline {
			if c.Pid == pid {
				return j, c
			}
		}
	}
	return nil, nil
}

// Snapshot returns a copy of every job in table order, whatever its
// lifecycle state; 1-based numbering is implied by index+1.
func (jt *JobTable) Snapshot() []*Job {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	out := make([]*Job, len(jt.jobs))
	copy(out, jt.jobs)
	return out
}

// Cleanup walks the table after an input line has finished executing:
// it prints a notification for every job with NotifyStatus set, removes
// every Valid job whose status is Terminated wherever it sits in the table
// (the jobs after it move down one number), and then truncates Invalid
// entries off the tail.
func (jt *JobTable) Cleanup(notify func(n int, j *Job)) {
	jt.mu.Lock()
	defer jt.mu.Unlock()

	for i, j := range jt.jobs {
		if j.NotifyStatus {
			notify(i+1, j)
			j.NotifyStatus = false
		}
	}

	kept := jt.jobs[:0]
	for _, j := range jt.jobs {
		if j.AggregateStatus() == StatusTerminated && j.State == JobValid {
			continue
		}
		kept = append(kept, j)
	}
	jt.jobs = kept

	for len(jt.jobs) > 0 && jt.jobs[len(jt.jobs)-1].State == JobInvalid {
		jt.jobs = jt.jobs[:len(jt.jobs)-1]
	}
}

// beginWaitLocked announces the pid the foreground waiter is about to block
// on. Must be called with jt locked; the caller then unlocks and receives
// from the returned channel.
func (jt *JobTable) beginWaitLocked(pid int) chan unix.WaitStatus {
	jt.waitedPid = pid
	jt.waitedHit = false
	jt.outstanding = true
	return jt.waitCh
}

func (jt *JobTable) endWaitLocked() {
	jt.outstanding = false
}

// deliverOrUpdateLocked is the handler half of the handshake: called by the
// SIGCHLD translator for each reaped status. If pid is the one the
// foreground waiter announced, and this is the first match for this
// invocation, the status is handed off synchronously and no job is
// touched. Otherwise the job table is updated asynchronously.
func (jt *JobTable) deliverOrUpdateLocked(pid int, status unix.WaitStatus, continued bool) {
	if jt.outstanding && pid == jt.waitedPid && !jt.waitedHit && !continued {
		jt.waitedHit = true
		jt.waitCh <- status
		return
	}

	job, cmd := jt.FindByPidLocked(pid)
	if job == nil || cmd == nil {
		return
	}

	before := job.AggregateStatus()
	cmd.State = stateFromWaitStatus(status, continued)
	if pid == job.Pid {
		job.Status = status
	}
	job.ForcedRunning = false
	after := job.AggregateStatus()
	if before != after {
		job.NotifyStatus = true
	}
}

func stateFromWaitStatus(status unix.WaitStatus, continued bool) parser.ChildState {
	switch {
	case continued:
		return parser.StateContinued
	case status.Stopped():
		return parser.StateStopped
	case status.Signaled():
		if status.CoreDump() {
			return parser.StateDumped
		}
		return parser.StateSignaled
	case status.Exited():
		return parser.StateExited
	default:
		return parser.StateRunning
	}
}

// jobRow formats one jobs-builtin line.
func jobRow(n int, j *Job) string {
	return fmt.Sprintf("[%d]\t%s", n, j)
}
