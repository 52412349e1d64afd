package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrCommandFailed = errors.New("container command failed")

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command on the host.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Compose drives a single compose file through `<tool> compose`.
type Compose struct {
	tool     string
	file     string
	failFast bool
	run      CommandRunner
}

func NewCompose(tool, file string, failFast bool) *Compose {
	return &Compose{
		tool:     tool,
		file:     file,
		failFast: failFast,
		run:      ExecRunner,
	}
}

// WithRunner replaces the command runner, used to stub the container tool.
func (c *Compose) WithRunner(run CommandRunner) *Compose {
	c.run = run
	return c
}

// Up starts the services in detached mode.
func (c *Compose) Up(ctx context.Context) error {
	return c.exec(ctx, "up", "-d")
}

// Down stops the services and removes their volumes.
func (c *Compose) Down(ctx context.Context) error {
	return c.exec(ctx, "down", "--volumes")
}

func (c *Compose) exec(ctx context.Context, command ...string) error {
	args := append([]string{"compose", "-f", c.file}, command...)

	out, err := c.run(ctx, c.tool, args...)
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// the tool could not be spawned at all
		return fmt.Errorf("failed to run %s %s: %w", c.tool, strings.Join(args, " "), err)
	}

	if !c.failFast {
		return nil
	}

	return fmt.Errorf("%w: %s %s exited with %d: %s",
		ErrCommandFailed, c.tool, strings.Join(args, " "), exitErr.ExitCode(), strings.TrimSpace(string(out)))
}
