package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/notecap/pkg/core"
	"github.com/aretw0/notecap/pkg/windows"
)

// Exit statuses beyond the generic 1, so scripts and the window opener can
// tell common failures apart.
const (
	exitFailure  = 1
	exitNotFound = 3
	exitReadOnly = 4
	exitWindow   = 5
)

func main() {
	Execute()
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return exitNotFound
	case errors.Is(err, core.ErrReadOnly):
		return exitReadOnly
	case errors.Is(err, core.ErrWindowOpen), errors.Is(err, windows.ErrWindowExists):
		return exitWindow
	}
	return exitFailure
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "notecap: %s: %v\n", msg, err)
	os.Exit(exitCode(err))
}
