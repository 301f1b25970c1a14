package platform

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// BasePlatform implements Platform on top of the os and os/exec packages
type BasePlatform struct{}

// NewBasePlatform creates a new base platform
func NewBasePlatform() *BasePlatform {
	return &BasePlatform{}
}

func (bp *BasePlatform) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (bp *BasePlatform) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

func (bp *BasePlatform) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (bp *BasePlatform) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (bp *BasePlatform) CommandContext(ctx context.Context, name string, args ...string) Command {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ExecCommand{cmd: exec.CommandContext(ctx, name, args...)}
}

// ExecCommand wraps exec.Cmd to implement Command interface
type ExecCommand struct {
	cmd *exec.Cmd
}

func (e *ExecCommand) SetStdout(w io.Writer) {
	e.cmd.Stdout = w
}

func (e *ExecCommand) SetStderr(w io.Writer) {
	e.cmd.Stderr = w
}

func (e *ExecCommand) Run() error {
	return e.cmd.Run()
}

// String returns the command line as it will be executed
func (e *ExecCommand) String() string {
	return e.cmd.String()
}
