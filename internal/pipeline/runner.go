package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/executor"
)

// Command is one bounded external invocation.
type Command struct {
	Program string
	Args    []string
	Input   string
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Program}, c.Args...), " ")
}

// Result holds the captured output of a command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Runner executes commands. It returns a non-nil error when the command could
// not start, exited non-zero or exceeded its timeout; Result is populated
// whenever the process ran.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands as local processes. A timed-out or cancelled
// command is killed; containers it started are removed by the Pipeline.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	out, err := executor.New(c.Program, c.Args...).ExecuteWithInput(ctx, c.Input)
	res := &Result{ExitCode: -1}
	if out != nil {
		res.Stdout = out.Stdout
		res.Stderr = out.Stderr
		res.ExitCode = out.ExitCode
	}

	switch {
	case err == nil:
		return res, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.TimedOut = true
		return res, fmt.Errorf("timed out after %s: %w", c.Timeout, context.DeadlineExceeded)
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, fmt.Errorf("command interrupted: %w", ctx.Err())
	default:
		return res, err
	}
}
