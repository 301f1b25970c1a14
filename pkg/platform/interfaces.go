package platform

import (
	"context"
	"io"
	"os"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

// Platform provides a unified interface for the OS operations gattguard needs
//
//counterfeiter:generate . Platform
type Platform interface {
	OSOperations
	CommandFactory
	ExecOperations
}

// OSOperations defines file system and OS-level operations
//
//counterfeiter:generate . OSOperations
type OSOperations interface {
	// File info operations
	Stat(name string) (os.FileInfo, error)
	IsNotExist(err error) bool

	// Environment
	UserHomeDir() (string, error)
}

// CommandFactory creates commands bound to a context
//
//counterfeiter:generate . CommandFactory
type CommandFactory interface {
	CommandContext(ctx context.Context, name string, args ...string) Command
}

// Command represents an external command
//
//counterfeiter:generate . Command
type Command interface {
	SetStdout(w io.Writer)
	SetStderr(w io.Writer)
	Run() error
	String() string
}

// ExecOperations defines executable resolution operations
//
//counterfeiter:generate . ExecOperations
type ExecOperations interface {
	LookPath(file string) (string, error)
}
