package rshell

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/rtolkacheva/rshell/internal/prompt"
	"github.com/rtolkacheva/rshell/parser"
)

func killProcessGroup(pgid int) {
	unix.Kill(-pgid, unix.SIGTERM)
	unix.Kill(-pgid, unix.SIGCONT)
}

// Shell ties the job table, signal translator, terminal, execution engine
// and line reader together into the top-level prompt/parse/execute/reap
// loop. Grounded on original_source/shell.c's start_shell and the
// teacher's cmd/main.go bufio loop shape, with prompt.Reader standing in
// for the out-of-scope terminal input loop.
type Shell struct {
	table    *JobTable
	term     *Terminal
	signaler *Signaler
	engine   *Engine
	reader   *prompt.Reader
	log      *zap.SugaredLogger
}

func NewShell(log *zap.SugaredLogger) (*Shell, error) {
	term, err := OpenTerminal()
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	table := NewJobTable()
	signaler := NewSignaler(table)
	engine := NewEngine(table, term, log)

	reader, err := prompt.NewReader()
	if err != nil {
		signaler.Stop()
		return nil, fmt.Errorf("open prompt reader: %w", err)
	}
	prompt.NotifyInterrupt(os.Stdout)

	return &Shell{table: table, term: term, signaler: signaler, engine: engine, reader: reader, log: log}, nil
}

// Run drives the loop until EOF or a completed `exit`.
func (sh *Shell) Run() {
	defer sh.reader.Close()
	defer sh.signaler.Stop()

	for {
		line, err := sh.reader.ReadLine()
		if errors.Is(err, prompt.ErrInterrupted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if !sh.teardown() {
				continue
			}
			return
		}
		if err != nil {
			sh.log.Errorw("read line failed", "err", err)
			if !sh.teardown() {
				continue
			}
			return
		}

		cmds, perr := parser.Parse(line)
		if perr != nil {
			if errors.Is(perr, parser.ErrRedirection) {
				fmt.Fprintf(os.Stderr, "rshell: %v\n", perr)
			} else {
				fmt.Fprintf(os.Stderr, "rshell: %v\n", fmt.Errorf("%w: %v", ErrSyntax, perr))
			}
			continue
		}
		if cmds == nil {
			continue
		}

		if err := sh.engine.ExecuteLine(cmds, line); err != nil {
			sh.log.Errorw("fatal execution error", "err", err)
			if !sh.teardown() {
				continue
			}
			return
		}

		sh.table.Cleanup(sh.notifyJob)

		if sh.engine.ExitRequested {
			return
		}
	}
}

func (sh *Shell) notifyJob(n int, j *Job) {
	fmt.Println(jobRow(n, j))
}

// teardown is retriable, sharing builtinExit's warning-given gate
// (Engine.warningGiven): the first call with stopped jobs present only
// warns and reports "not done", sending the shell back to the prompt; a
// second call (or a call with no stopped jobs) force-terminates the
// stopped jobs' process groups and reports "done". It never touches
// Running jobs, which are left to finish or be reaped asynchronously.
func (sh *Shell) teardown() bool {
	stopped := false
	for _, j := range sh.table.Snapshot() {
		if j.State == JobValid && j.AggregateStatus() == StatusStopped {
			stopped = true
			break
		}
	}

	if stopped && !sh.engine.warningGiven {
		fmt.Println("There are stopped jobs")
		sh.engine.warningGiven = true
		return false
	}

	for _, j := range sh.table.Snapshot() {
		if j.State == JobValid && j.AggregateStatus() == StatusStopped && j.Pgid != 0 {
			killProcessGroup(j.Pgid)
		}
	}
	return true
}
