// Package prompt is the terminal input loop: it turns keystrokes into a
// completed line, handling prompt rendering, continuation, comment
// stripping and SIGINT — all explicitly out of the shell core's scope per
// spec.md §1, referenced there only at this interface.
//
// Grounded on the teacher's prompt.go (env-driven prompt expansion) and
// completion.go/smart_completion.go (the readline.Instance construction
// and its AutoCompleter.Do shape), trimmed to exactly what a line reader
// needs: no history, no tab completion of shell state, no aliasing.
package prompt

import (
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
)

var defaultPrompt = "\033[1;36m%u@%h\033[0m:\033[1;34m%w\033[0m$ "

// Reader reads complete, balanced command lines from the terminal,
// joining continuation lines (trailing `|`, `&&`, `||`, or backslash) and
// stripping `#`-comments before handing the result to the parser.
type Reader struct {
	rl *readline.Instance
}

// NewReader constructs a Reader backed by github.com/chzyer/readline, with
// history disabled (history is a non-goal of the core this reads for).
func NewReader() (*Reader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          expandPrompt(promptTemplate()),
		HistoryFile:     "",
		HistoryLimit:    -1,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &Reader{rl: rl}, nil
}

// Close releases the underlying terminal state.
func (r *Reader) Close() error { return r.rl.Close() }

// ErrInterrupted is returned when Ctrl-C interrupted the current line; the
// caller should print a fresh prompt and continue, per the original
// shell's transient SIGINT handler that writes "\n" to the output fd.
var ErrInterrupted = readline.ErrInterrupt

// ReadLine reads one complete, continuation-joined, comment-stripped
// logical line. io.EOF signals the loop should begin graceful teardown.
func (r *Reader) ReadLine() (string, error) {
	r.rl.SetPrompt(expandPrompt(promptTemplate()))

	var full strings.Builder
	for {
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			io.WriteString(os.Stdout, "\n")
			return "", ErrInterrupted
		}
		if err != nil {
			return "", err
		}

		line = stripComment(line)
		trimmed := strings.TrimRight(line, " \t")

		cont := strings.HasSuffix(trimmed, "\\")
		if cont {
			trimmed = strings.TrimSuffix(trimmed, "\\")
		}
		full.WriteString(trimmed)

		if cont || needsContinuation(full.String()) {
			full.WriteString(" ")
			r.rl.SetPrompt("> ")
			continue
		}
		return full.String(), nil
	}
}

// needsContinuation reports whether the accumulated line ends in an
// operator that cannot be the last token of a complete line (|, &&, ||).
func needsContinuation(line string) bool {
	t := strings.TrimRight(line, " \t")
	for _, op := range []string{"||", "&&", "|"} {
		if strings.HasSuffix(t, op) {
			return true
		}
	}
	return false
}

// stripComment drops everything from the first unquoted '#' onward.
// Quoting is a non-goal of the core parser, so this is a plain byte scan.
func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func promptTemplate() string {
	if p := os.Getenv("RSHELL_PROMPT"); p != "" {
		return p
	}
	return defaultPrompt
}

func expandPrompt(tpl string) string {
	username := os.Getenv("USER")
	hostname, _ := os.Hostname()
	cwd, _ := os.Getwd()

	replacements := map[string]string{
		"%u": username,
		"%h": hostname,
		"%w": cwd,
		"%$": "$",
	}
	for k, v := range replacements {
		tpl = strings.ReplaceAll(tpl, k, v)
	}
	return tpl
}

// NotifyInterrupt arranges for SIGINT received outside an active Readline
// call (e.g. while a foreground job briefly had the terminal) to still
// echo a newline, matching the original's transient handler.
func NotifyInterrupt(w io.Writer) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	go func() {
		for range ch {
			io.WriteString(w, "\n")
		}
	}()
}
