package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs an external program and captures its output.
// It allows mocking command execution in tests and running the Juju CLI on
// a remote host.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExitError is returned by a Runner when the program ran but exited with a
// non-zero status.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// LocalRunner implements Runner using os/exec.
type LocalRunner struct{}

func (r *LocalRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = &ExitError{Code: exitErr.ExitCode(), Err: err}
	}
	return stdout.String(), stderr.String(), err
}

// CommandLine joins a program and its arguments for logs and mock lookups.
func CommandLine(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// IsCommandAvailable reports whether a program is on the PATH.
var IsCommandAvailable = func(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
