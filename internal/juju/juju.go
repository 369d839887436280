// Package juju runs the Juju CLI and exposes its status output as typed
// snapshots.
package juju

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/melih-ucgun/vigil/internal/core"
	"github.com/melih-ucgun/vigil/internal/status"
	"github.com/melih-ucgun/vigil/internal/wait"
)

// CLIError is returned when a Juju command fails. Stdout and Stderr are
// included in the message.
type CLIError struct {
	ExitCode int
	Args     []string
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CLIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command %q failed", strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " with exit status %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stdout != "" {
		b.WriteString("\nStdout:\n" + e.Stdout)
	}
	if e.Stderr != "" {
		b.WriteString("\nStderr:\n" + e.Stderr)
	}
	return b.String()
}

func (e *CLIError) Unwrap() error { return e.Err }

// Juju runs commands against one model (or the current model when Model is
// empty).
type Juju struct {
	// Model may be prefixed with "<controller>:".
	Model string
	// WaitTimeout is used by Wait when no WithTimeout option is given.
	WaitTimeout time.Duration
	CLIBinary   string

	Runner core.Runner
	Logger core.Logger
	Clock  clock.Clock
}

type Option func(*Juju)

func WithModel(model string) Option {
	return func(j *Juju) { j.Model = model }
}

func WithWaitTimeout(d time.Duration) Option {
	return func(j *Juju) { j.WaitTimeout = d }
}

func WithCLIBinary(path string) Option {
	return func(j *Juju) { j.CLIBinary = path }
}

func WithRunner(r core.Runner) Option {
	return func(j *Juju) { j.Runner = r }
}

func WithLogger(l core.Logger) Option {
	return func(j *Juju) { j.Logger = l }
}

func WithClock(c clock.Clock) Option {
	return func(j *Juju) { j.Clock = c }
}

// New returns a client that runs `juju` from the PATH on this machine.
func New(opts ...Option) *Juju {
	j := &Juju{
		WaitTimeout: wait.DefaultTimeout,
		CLIBinary:   "juju",
		Runner:      &core.LocalRunner{},
		Logger:      core.NopLogger{},
		Clock:       clock.RealClock{},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Juju) String() string {
	return fmt.Sprintf("Juju(model=%q, wait_timeout=%s, cli_binary=%q)", j.Model, j.WaitTimeout, j.CLIBinary)
}

// CLI runs a Juju sub-command and returns its standard output. The model
// flag is added after the sub-command name when Model is set.
func (j *Juju) CLI(ctx context.Context, args ...string) (string, error) {
	stdout, _, err := j.run(ctx, true, true, args...)
	return stdout, err
}

func (j *Juju) run(ctx context.Context, includeModel, log bool, args ...string) (string, string, error) {
	if len(args) == 0 {
		return "", "", errors.New("juju: no command given")
	}
	if includeModel && j.Model != "" {
		args = append([]string{args[0], "--model", j.Model}, args[1:]...)
	}
	if log {
		j.Logger.Info("cli: juju " + strings.Join(args, " "))
	}

	stdout, stderr, err := j.Runner.Run(ctx, j.CLIBinary, args...)
	if err != nil {
		cliErr := &CLIError{
			Args:   append([]string{j.CLIBinary}, args...),
			Stdout: stdout,
			Stderr: stderr,
			Err:    err,
		}
		var exitErr *core.ExitError
		if errors.As(err, &exitErr) {
			cliErr.ExitCode = exitErr.Code
		}
		return stdout, stderr, cliErr
	}
	return stdout, stderr, nil
}

// RawStatus returns the output of `juju status --format json`. It does not
// log the command, since Wait calls it every tick.
func (j *Juju) RawStatus(ctx context.Context) ([]byte, error) {
	stdout, _, err := j.run(ctx, true, false, "status", "--format", "json")
	if err != nil {
		return nil, err
	}
	return []byte(stdout), nil
}

// Status fetches and parses the status of the model once.
func (j *Juju) Status(ctx context.Context) (*status.Status, error) {
	stdout, err := j.CLI(ctx, "status", "--format", "json")
	if err != nil {
		return nil, err
	}
	return status.ParseJSON([]byte(stdout))
}

// Wait polls the model status until ready holds; see wait.Poller.Wait.
// Status changes are logged at INFO as "wait: status changed".
func (j *Juju) Wait(ctx context.Context, ready wait.Predicate, opts ...wait.Option) (*status.Status, error) {
	return j.WaitWithSink(ctx, ready, j.logChanges, opts...)
}

// WaitWithSink is Wait with a caller-supplied receiver for status diffs.
func (j *Juju) WaitWithSink(ctx context.Context, ready wait.Predicate, sink wait.Sink, opts ...wait.Option) (*status.Status, error) {
	p := &wait.Poller{
		Source: j,
		Sink:   sink,
		Logger: j.Logger,
		Clock:  j.Clock,
	}
	opts = append([]wait.Option{wait.WithTimeout(j.WaitTimeout)}, opts...)
	return p.Wait(ctx, ready, opts...)
}

func (j *Juju) logChanges(lines []string) {
	j.Logger.Info("wait: status changed", "diff", strings.Join(lines, "\n"))
}
