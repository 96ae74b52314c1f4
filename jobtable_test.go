package rshell

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/rtolkacheva/rshell/parser"
)

func TestCurrentJobReusesConstructing(t *testing.T) {
	jt := NewJobTable()
	jt.Lock()
	j1 := jt.CurrentJobLocked("echo hi")
	j1.State = JobConstructing
	j2 := jt.CurrentJobLocked("echo hi")
	jt.Unlock()

	if j1 != j2 {
		t.Fatalf("expected the same in-progress job to be reused")
	}
}

func TestCurrentJobAppendsAfterValid(t *testing.T) {
	jt := NewJobTable()
	jt.Lock()
	j1 := jt.CurrentJobLocked("echo hi")
	j1.State = JobValid
	j2 := jt.CurrentJobLocked("echo bye")
	jt.Unlock()

	if j1 == j2 {
		t.Fatalf("expected a fresh job once the previous one is Valid")
	}
}

func TestFindByPidLocated(t *testing.T) {
	jt := NewJobTable()
	cmds, _ := parser.Parse("sleep 1")
	cmds[0].Pid = 4242

	jt.Lock()
	j := jt.CurrentJobLocked("sleep 1")
	j.Pipeline = append(j.Pipeline, cmds[0])
	j.State = JobValid
	found, cmd := jt.FindByPidLocked(4242)
	jt.Unlock()

	if found != j || cmd != cmds[0] {
		t.Fatalf("FindByPidLocked did not locate the job/command by pid")
	}
}

func TestCleanupReleasesTerminatedAndTruncates(t *testing.T) {
	jt := NewJobTable()
	jt.Lock()
	j := jt.CurrentJobLocked("true")
	j.Pipeline = append(j.Pipeline, cmdWithState("true", parser.StateExited))
	j.State = JobValid
	jt.Unlock()

	notified := 0
	jt.Cleanup(func(n int, job *Job) { notified++ })

	if len(jt.Snapshot()) != 0 {
		t.Fatalf("expected the terminated job to be truncated, got %d jobs", len(jt.Snapshot()))
	}
}

func TestHandshakeDeliversToWaiter(t *testing.T) {
	jt := NewJobTable()
	jt.Lock()
	ch := jt.beginWaitLocked(999)
	jt.Unlock()

	want := unix.WaitStatus(0)
	jt.Lock()
	jt.deliverOrUpdateLocked(999, want, false)
	jt.Unlock()

	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("got status %v, want %v", got, want)
		}
	default:
		t.Fatalf("expected a status to be waiting on the handshake channel")
	}
}

func TestAsyncUpdateSetsNotifyOnTransition(t *testing.T) {
	jt := NewJobTable()
	cmds, _ := parser.Parse("sleep 1")
	cmds[0].Pid = 555
	cmds[0].State = parser.StateContinued

	jt.Lock()
	j := jt.CurrentJobLocked("sleep 1")
	j.Pipeline = append(j.Pipeline, cmds[0])
	j.State = JobValid
	jt.Unlock()

	jt.Lock()
	jt.deliverOrUpdateLocked(555, unix.WaitStatus(0x7f), false) // WIFSTOPPED-shaped
	jt.Unlock()

	if !j.NotifyStatus {
		t.Fatalf("expected NotifyStatus to be set after a Running -> Stopped transition")
	}
}
