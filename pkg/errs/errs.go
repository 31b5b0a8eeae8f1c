// Package errs holds the error kinds shared by every mibitools package.
// Callers test for a kind with errors.Is; context is added on the way up
// with github.com/pkg/errors so the kind survives wrapping.
package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds
var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrChannelNotFound   = errors.New("channel not found")
	ErrShapeMismatch     = errors.New("shape mismatch")
	ErrSubprocess        = errors.New("subprocess failure")
	ErrDestinationExists = errors.New("destination exists")
	ErrMissingSource     = errors.New("missing source")
	ErrPathNotFound      = errors.New("path not found")
	ErrNamingCollision   = errors.New("naming collision")
	ErrInvalidConfig     = errors.New("invalid config")
)

// outputTailLines is how much of a failed program's output is kept in the message.
const outputTailLines = 10

// SubprocessError reports an external program that exited non-zero or could
// not be started.
type SubprocessError struct {
	Program  string
	ExitCode int
	Output   string
	Err      error
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("%v: %s exited with code %d", ErrSubprocess, e.Program, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if tail := Tail(e.Output, outputTailLines); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

// Unwrap lets errors.Is match ErrSubprocess.
func (e *SubprocessError) Unwrap() error {
	return ErrSubprocess
}

// Tail returns the last n non-empty lines of s.
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		kept = append([]string{lines[i]}, kept...)
	}
	return strings.Join(kept, "\n")
}
