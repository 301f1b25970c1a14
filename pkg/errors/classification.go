package errors

import (
	"errors"
)

// ErrorCategory groups errors by the kind of problem they represent
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryCompiler      ErrorCategory = "compiler"
	CategoryCancelled     ErrorCategory = "cancelled"
	CategoryUnknown       ErrorCategory = "unknown"
)

// ClassifiedError carries a category and a short message meant for the
// person reading the build log.
type ClassifiedError struct {
	Err      error
	Category ErrorCategory
	UserMsg  string
}

func (e *ClassifiedError) Error() string {
	return e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// ClassifyError classifies an error based on its type
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case IsContextError(err):
		return &ClassifiedError{
			Err:      err,
			Category: CategoryCancelled,
			UserMsg:  "Header generation was interrupted.",
		}

	case errors.Is(err, ErrCompilerNotFound):
		return &ClassifiedError{
			Err:      err,
			Category: CategoryCompiler,
			UserMsg:  "GATT compiler not found. Is the framework package installed?",
		}

	case IsCompilerError(err):
		return &ClassifiedError{
			Err:      err,
			Category: CategoryCompiler,
			UserMsg:  "GATT compiler failed. See its output above.",
		}

	case errors.Is(err, ErrProfileNotFound):
		return &ClassifiedError{
			Err:      err,
			Category: CategoryFilesystem,
			UserMsg:  "GATT profile source is missing.",
		}

	case IsFilesystemError(err):
		return &ClassifiedError{
			Err:      err,
			Category: CategoryFilesystem,
			UserMsg:  "Filesystem operation failed. Please check file permissions and paths.",
		}

	case IsConfigError(err), errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrInvalidMode):
		return &ClassifiedError{
			Err:      err,
			Category: CategoryConfiguration,
			UserMsg:  "Configuration error. Please check gattguard.yml and flags.",
		}

	default:
		return &ClassifiedError{
			Err:      err,
			Category: CategoryUnknown,
			UserMsg:  "An unexpected error occurred.",
		}
	}
}
