package errors

import (
	"errors"
	"fmt"
)

// Common errors that can be used across packages
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrHostNotAllowed   = errors.New("host not allowed")
)

// ValidationError represents an error that occurs during validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Is lets errors.Is match any ValidationError against ErrInvalidArgument.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// FileError represents an error that occurs during file operations
type FileError struct {
	Path    string
	Op      string
	Wrapped error
}

func (e *FileError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s operation failed on %s: %v", e.Op, e.Path, e.Wrapped)
	}
	return fmt.Sprintf("%s operation failed on %s", e.Op, e.Path)
}

func (e *FileError) Unwrap() error {
	return e.Wrapped
}

// NewFileError creates a new FileError
func NewFileError(path, op string, wrapped error) error {
	return &FileError{
		Path:    path,
		Op:      op,
		Wrapped: wrapped,
	}
}

// DownloadError is returned when the source server answers with a non-success status
type DownloadError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: server returned %s", e.URL, e.Status)
}

// NewDownloadError creates a new DownloadError
func NewDownloadError(url string, statusCode int, status string) error {
	return &DownloadError{
		URL:        url,
		StatusCode: statusCode,
		Status:     status,
	}
}

// RegistrationError represents a failure talking to the tracking backend.
// Stage names the step that failed (init_run, log_artifact, wait, ...).
type RegistrationError struct {
	Stage    string
	Artifact string
	Wrapped  error
}

func (e *RegistrationError) Error() string {
	if e.Artifact != "" {
		if e.Wrapped != nil {
			return fmt.Sprintf("artifact %s: %s failed: %v", e.Artifact, e.Stage, e.Wrapped)
		}
		return fmt.Sprintf("artifact %s: %s failed", e.Artifact, e.Stage)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Wrapped)
	}
	return fmt.Sprintf("%s failed", e.Stage)
}

func (e *RegistrationError) Unwrap() error {
	return e.Wrapped
}

// NewRegistrationError creates a new RegistrationError
func NewRegistrationError(stage, artifact string, wrapped error) error {
	return &RegistrationError{
		Stage:    stage,
		Artifact: artifact,
		Wrapped:  wrapped,
	}
}

// Is reports whether target matches err.
// It enables errors.Is() to work with our custom error types.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// It enables errors.As() to work with our custom error types.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
