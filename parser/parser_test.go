package parser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSimple(t *testing.T) {
	cmds, err := Parse("echo hi there")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	want := []string{"echo", "hi", "there"}
	if len(cmds[0].Args) != len(want) {
		t.Fatalf("args = %v, want %v", cmds[0].Args, want)
	}
	for i := range want {
		if cmds[0].Args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, cmds[0].Args[i], want[i])
		}
	}
}

func TestParseEmptyLine(t *testing.T) {
	cmds, err := Parse("   ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmds != nil {
		t.Fatalf("expected nil commands for blank line, got %v", cmds)
	}
}

func TestParsePipeline(t *testing.T) {
	cmds, err := Parse("echo hi | wc -c")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if !cmds[0].Flags.PipeOut {
		t.Errorf("first command should have PipeOut set")
	}
	if !cmds[1].Flags.PipeIn {
		t.Errorf("second command should have PipeIn set")
	}
	if cmds[0].Flags.Background || cmds[1].Flags.Background {
		t.Errorf("no command should be background")
	}
}

func TestParseBackground(t *testing.T) {
	cmds, err := Parse("sleep 10 &")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cmds) != 1 || !cmds[0].Flags.Background {
		t.Fatalf("expected one background command, got %+v", cmds)
	}
}

func TestParseAndOrSemicolon(t *testing.T) {
	cmds, err := Parse("false && echo X ; echo Y")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(cmds))
	}
	if !cmds[0].Flags.SkipNextOnFail {
		t.Errorf("first command should set SkipNextOnFail")
	}
	if cmds[1].Flags.SkipNextOnFail || cmds[1].Flags.SkipNextOnSuccess {
		t.Errorf("echo X should carry no skip flags of its own")
	}
	if cmds[2].Args[0] != "echo" || cmds[2].Args[1] != "Y" {
		t.Errorf("third command = %v, want echo Y", cmds[2].Args)
	}
}

func TestParseOrOperator(t *testing.T) {
	cmds, err := Parse("false || echo X")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cmds) != 2 || !cmds[0].Flags.SkipNextOnSuccess {
		t.Fatalf("expected SkipNextOnSuccess on first command, got %+v", cmds)
	}
}

func TestParseNoCommandBeforeOperator(t *testing.T) {
	for _, line := range []string{"| echo hi", "&& echo hi", "; echo hi", "& echo hi"} {
		if _, err := Parse(line); err == nil {
			t.Errorf("Parse(%q) should have failed", line)
		}
	}
}

func TestFdPrefixAdjacentVsSpaced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	cmds, err := Parse("cmd 2> " + path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r, ok := cmds[0].Redirections.Get(2)
	if !ok {
		t.Fatalf("expected redirection on fd 2, got %+v", cmds[0].Redirections.Fds())
	}
	if r.Path != path {
		t.Errorf("path = %q, want %q", r.Path, path)
	}
	if len(cmds[0].Args) != 1 || cmds[0].Args[0] != "cmd" {
		t.Errorf("args = %v, want [cmd] (2 should have been consumed as fd)", cmds[0].Args)
	}

	cmds, err = Parse("cmd 2 > " + path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := cmds[0].Redirections.Get(2); ok {
		t.Errorf("fd 2 should not be a redirection target when space-separated")
	}
	if _, ok := cmds[0].Redirections.Get(1); !ok {
		t.Errorf("expected default stdout redirection when fd is space-separated")
	}
	want := []string{"cmd", "2"}
	if len(cmds[0].Args) != 2 || cmds[0].Args[0] != want[0] || cmds[0].Args[1] != want[1] {
		t.Errorf("args = %v, want %v ('2' should remain a plain argument)", cmds[0].Args, want)
	}
}

func TestInputRedirectionFirstWins(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	cmds, err := Parse("cmd <" + a + " <" + b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r, ok := cmds[0].Redirections.Get(0)
	if !ok {
		t.Fatalf("expected stdin redirection")
	}
	if r.Path != a {
		t.Errorf("first-wins: got %q, want %q", r.Path, a)
	}
}

func TestOutputRedirectionLastWins(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	cmds, err := Parse("cmd >" + a + " >" + b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r, ok := cmds[0].Redirections.Get(1)
	if !ok {
		t.Fatalf("expected stdout redirection")
	}
	if r.Path != b {
		t.Errorf("last-wins: got %q, want %q", r.Path, b)
	}
}

func TestRedirectionToNonexistentFileFails(t *testing.T) {
	if _, err := Parse("cat < /nonexistent/path/for/rshell/test"); err == nil {
		t.Errorf("expected parse failure for unreadable input file")
	}
}

func TestAppendRedirection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	cmds, err := Parse("cmd >>" + path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r, ok := cmds[0].Redirections.Get(1)
	if !ok {
		t.Fatalf("expected stdout redirection")
	}
	if r.Flags&os.O_APPEND == 0 {
		t.Errorf("expected O_APPEND flag set")
	}
}
