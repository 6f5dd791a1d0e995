package review

import (
	"os"

	"golang.org/x/term"
)

// IsTTY reports whether the file descriptor is a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// IsOutputTerminal reports whether stdout goes to a user's terminal rather
// than a pipe or CI log. Per-file progress lines are only worth printing
// in that case.
func IsOutputTerminal() bool {
	return IsTTY(os.Stdout.Fd())
}
