package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	gerrors "gattguard/pkg/errors"
	"gattguard/pkg/logger"
	"gattguard/pkg/platform"
)

// ShellEnvironment runs commands as child processes whose output goes
// straight to the build log.
type ShellEnvironment struct {
	platform platform.Platform
	logger   *logger.Logger
	stdout   io.Writer
	stderr   io.Writer
}

// NewShellEnvironment creates an environment writing child output to stdout
// and stderr
func NewShellEnvironment(p platform.Platform, log *logger.Logger, stdout, stderr io.Writer) *ShellEnvironment {
	if log == nil {
		log = logger.New()
	}
	return &ShellEnvironment{
		platform: p,
		logger:   log.WithField("component", "shell-env"),
		stdout:   stdout,
		stderr:   stderr,
	}
}

// Execute resolves name, runs it with args and waits for it to exit
func (e *ShellEnvironment) Execute(ctx context.Context, name string, args ...string) error {
	path, err := e.platform.LookPath(name)
	if err != nil {
		return gerrors.NewCompilerNotFoundError(name, err)
	}

	cmd := e.platform.CommandContext(ctx, path, args...)
	if e.stdout != nil {
		cmd.SetStdout(e.stdout)
	}
	if e.stderr != nil {
		cmd.SetStderr(e.stderr)
	}

	e.logger.Debug("executing command", "command", cmd.String())

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted: %w", name, ctxErr)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return gerrors.NewCompilerFailedError(name, exitErr.ExitCode(), err)
		}
		return gerrors.NewCompilerFailedError(name, -1, err)
	}

	e.logger.Debug("command finished", "command", name, "duration", time.Since(start))
	return nil
}
