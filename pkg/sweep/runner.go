package sweep

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"time"

	"mibitools/pkg/errs"
)

const killWaitDelay = 2 * time.Second

// CommandRunner abstracts process execution so runs can be faked in tests
type CommandRunner interface {
	// Run executes name in dir and returns the combined output and exit code
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, int, error)
}

// ExecRunner executes commands on the local host
type ExecRunner struct{}

// Run is backed by os/exec. A non-zero exit is a *errs.SubprocessError, with
// code 127 when the program cannot be found. When
// ctx ends first the process is killed and ctx's error is returned.
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// children that keep the output pipes open must not block Wait forever
	cmd.WaitDelay = killWaitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return out.Bytes(), 0, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out.Bytes(), -1, ctxErr
	}

	exitCode := 1
	var exitErr *exec.ExitError
	var execErr *exec.Error
	switch {
	case errors.As(err, &exitErr):
		exitCode = exitErr.ExitCode()
	case errors.As(err, &execErr), errors.Is(err, fs.ErrNotExist):
		exitCode = 127
	}
	return out.Bytes(), exitCode, &errs.SubprocessError{
		Program:  name,
		ExitCode: exitCode,
		Output:   out.String(),
		Err:      err,
	}
}
