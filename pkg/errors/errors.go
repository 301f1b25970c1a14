// Package errors provides the error types shared by gattguard packages.
// Failures are wrapped with the path or command they concern and always
// propagated to the caller; nothing here retries.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// Profile and header errors
	ErrProfileNotFound  = errors.New("gatt profile not found")
	ErrFilesystemFailed = errors.New("filesystem operation failed")

	// Compiler errors
	ErrCompilerNotFound = errors.New("gatt compiler not found")
	ErrCompilerFailed   = errors.New("gatt compiler failed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidMode   = errors.New("invalid guard mode")
)

// FilesystemError represents an error related to filesystem operations
type FilesystemError struct {
	Path      string
	Operation string
	Err       error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem %s: operation %s: %v", e.Path, e.Operation, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// CompilerError represents a failed run of the external GATT compiler.
// ExitCode is -1 when the process never started or was killed by a signal.
type CompilerError struct {
	Compiler string
	ExitCode int
	Err      error
}

func (e *CompilerError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("compiler %s: exit code %d: %v", e.Compiler, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("compiler %s: %v", e.Compiler, e.Err)
}

func (e *CompilerError) Unwrap() error {
	return e.Err
}

// ConfigError represents an error related to configuration
type ConfigError struct {
	Component string
	Field     string
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s.%s: %v", e.Component, e.Field, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Component, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Error wrapping constructors
func WrapFilesystemError(path, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &FilesystemError{Path: path, Operation: operation, Err: err}
}

func WrapCompilerError(compiler string, exitCode int, err error) error {
	if err == nil {
		return nil
	}
	return &CompilerError{Compiler: compiler, ExitCode: exitCode, Err: err}
}

func WrapConfigError(component, field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigError{Component: component, Field: field, Err: err}
}

// Error classification functions
func IsFilesystemError(err error) bool {
	var fe *FilesystemError
	return errors.As(err, &fe)
}

func IsCompilerError(err error) bool {
	var ce *CompilerError
	return errors.As(err, &ce)
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// GetExitCode extracts the compiler exit code from err
func GetExitCode(err error) (int, bool) {
	var ce *CompilerError
	if errors.As(err, &ce) {
		return ce.ExitCode, true
	}
	return 0, false
}

// Convenience functions for common error patterns
func NewProfileNotFoundError(path string, err error) error {
	return WrapFilesystemError(path, "stat", fmt.Errorf("%w: %w", ErrProfileNotFound, err))
}

func NewFilesystemError(path, operation string, err error) error {
	return WrapFilesystemError(path, operation, fmt.Errorf("%w: %w", ErrFilesystemFailed, err))
}

func NewCompilerNotFoundError(compiler string, err error) error {
	return WrapCompilerError(compiler, -1, fmt.Errorf("%w: %w", ErrCompilerNotFound, err))
}

func NewCompilerFailedError(compiler string, exitCode int, err error) error {
	return WrapCompilerError(compiler, exitCode, fmt.Errorf("%w: %w", ErrCompilerFailed, err))
}

func NewConfigError(component, field string, err error) error {
	return WrapConfigError(component, field, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
}

// Context-aware error handling
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
