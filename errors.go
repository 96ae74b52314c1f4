package rshell

import (
	"errors"

	"github.com/rtolkacheva/rshell/parser"
)

// Sentinel errors subsystems wrap with fmt.Errorf("...: %w", ...) so the
// top-level loop can classify a failure with errors.Is.
var (
	// ErrSyntax marks a parser syntax error other than a redirection
	// failure: the line is discarded, the loop continues.
	ErrSyntax = errors.New("syntax error")

	// ErrRedirection marks a redirection validation failure (missing file,
	// fd out of range). It aliases parser.ErrRedirection, which is where
	// the failing opens and fd checks actually happen; parser cannot
	// import this package, so the sentinel lives there and is re-exported
	// here for callers that only import the root package.
	ErrRedirection = parser.ErrRedirection

	// ErrNoJobControl marks a built-in invoked with incompatible flags
	// (piped or backgrounded).
	ErrNoJobControl = errors.New("no job control")

	// ErrFatal marks a system-call failure severe enough that the
	// top-level loop must initiate teardown. Engine.ExecuteLine wraps only
	// a failed pipe creation with it; a command that fails to start is
	// reported and abandoned without teardown, and a failed setpgid is
	// ignored.
	ErrFatal = errors.New("fatal shell error")
)
