package rshell

import (
	"testing"

	"github.com/rtolkacheva/rshell/parser"
)

func newEngineForGateTests() *Engine {
	return &Engine{table: NewJobTable()}
}

func TestGateSkipsOnFailAfterAndAnd(t *testing.T) {
	e := newEngineForGateTests()
	cmds, err := parser.Parse("false && echo X")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if e.gate(cmds[0]) {
		t.Fatalf("the first command in a chain should never be skipped")
	}
	e.last = resultFail

	if !e.gate(cmds[1]) {
		t.Fatalf("expected echo X to be skipped after a failing &&")
	}
}

func TestGateSkipsOnSuccessAfterOrOr(t *testing.T) {
	e := newEngineForGateTests()
	cmds, err := parser.Parse("false || echo X")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	e.gate(cmds[0])
	e.last = resultSuccess

	if !e.gate(cmds[1]) {
		t.Fatalf("expected echo X to be skipped after a successful ||")
	}
}

func TestGateResetsAcrossSemicolon(t *testing.T) {
	e := newEngineForGateTests()
	cmds, err := parser.Parse("false && echo X ; echo Y")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	e.gate(cmds[0])
	e.last = resultFail
	e.gate(cmds[1]) // sets strategy back to skipNone since ; carries no skip flag

	if e.gate(cmds[2]) {
		t.Fatalf("echo Y after ; should never be skipped regardless of last_result")
	}
}

func TestGateLeavesStrategyIntactMidPipeline(t *testing.T) {
	e := newEngineForGateTests()
	cmds, err := parser.Parse("false && echo hi | wc -c")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cmds))
	}

	e.gate(cmds[0]) // sets skip = skipOnFail
	e.last = resultFail

	if !e.gate(cmds[1]) {
		t.Fatalf("expected the pipeline's first stage (echo hi) to be skipped")
	}
	// cmds[1] has PipeOut=true, so the strategy must survive into wc -c.
	if e.skip != skipOnFail {
		t.Fatalf("strategy should remain skipOnFail across a pipe stage")
	}
}

func TestIsTerminalStates(t *testing.T) {
	for _, st := range []parser.ChildState{parser.StateExited, parser.StateDumped, parser.StateSignaled} {
		if !isTerminal(st) {
			t.Errorf("isTerminal(%v) = false, want true", st)
		}
	}
	for _, st := range []parser.ChildState{parser.StateContinued, parser.StateRunning, parser.StateStopped} {
		if isTerminal(st) {
			t.Errorf("isTerminal(%v) = true, want false", st)
		}
	}
}
