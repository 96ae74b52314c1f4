package rshell

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// Signaler runs the asynchronous half of the SIGCHLD handshake (spec §5):
// a persistent goroutine fed by os/signal.Notify, reaping every exited,
// stopped or continued child with a non-blocking Wait4 loop and routing
// each event through the job table's critical section.
//
// Grounded on original_source/sig.c's sigchld_handler; the teacher's
// job.go handleSignals supplies the Go-idiomatic signal.Notify channel
// shape in place of a C signal handler.
type Signaler struct {
	table *JobTable
	sigCh chan os.Signal
	done  chan struct{}
}

// NewSignaler installs the ignored-signal dispositions the shell keeps for
// itself (SIGINT, SIGQUIT, SIGTERM, SIGTSTP, SIGTTIN, SIGTTOU) and starts
// the SIGCHLD translator goroutine.
func NewSignaler(table *JobTable) *Signaler {
	signal.Ignore(syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU)

	s := &Signaler{
		table: table,
		sigCh: make(chan os.Signal, 4),
		done:  make(chan struct{}),
	}
	signal.Notify(s.sigCh, syscall.SIGCHLD)
	go s.loop()
	return s
}

func (s *Signaler) loop() {
	for {
		select {
		case <-s.done:
			signal.Stop(s.sigCh)
			return
		case <-s.sigCh:
			s.reapAll()
		}
	}
}

// reapAll drains every reapable child in one SIGCHLD delivery, exactly as
// the original handler's waitpid loop does, since multiple children can
// change state before the shell gets scheduled.
func (s *Signaler) reapAll() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil || pid <= 0 {
			return
		}

		s.table.Lock()
		s.table.deliverOrUpdateLocked(pid, status, status.Continued())
		s.table.Unlock()
	}
}

// Stop ends the translator goroutine. Used by tests and final teardown.
func (s *Signaler) Stop() {
	close(s.done)
}
