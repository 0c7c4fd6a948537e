package fileutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harness/fetch-artifact/util/common/errors"
)

// validatePath checks if a path is valid and accessible.
// Returns an error if the path is empty, contains invalid characters,
// or if the parent directory is not accessible.
func validatePath(path string) error {
	if path == "" {
		return errors.NewValidationError("path", "path cannot be empty")
	}

	// Check for invalid characters in path
	if strings.ContainsAny(path, "<>|?*") {
		return errors.NewValidationError("path", "path contains invalid characters")
	}

	// Check if parent directory exists and is accessible
	parent := filepath.Dir(path)
	if parent != "." {
		if _, err := os.Stat(parent); err != nil {
			return errors.NewFileError(parent, "access", err)
		}
	}

	return nil
}

// ScopedTemp is a temporary file whose lifetime is bound to a Release call.
type ScopedTemp struct {
	*os.File
	released bool
}

// Path returns the location of the file on disk.
func (s *ScopedTemp) Path() string {
	return s.File.Name()
}

// Release closes the file and removes it from disk. It is safe to call more
// than once and after the file has already been closed.
func (s *ScopedTemp) Release() error {
	if s.released {
		return nil
	}
	s.released = true

	closeErr := s.File.Close()
	if closeErr != nil && errors.Is(closeErr, os.ErrClosed) {
		closeErr = nil
	}
	removeErr := os.Remove(s.File.Name())
	if removeErr != nil && os.IsNotExist(removeErr) {
		removeErr = nil
	}
	if removeErr != nil {
		removeErr = errors.NewFileError(s.File.Name(), "remove", removeErr)
	}
	return errors.Join(closeErr, removeErr)
}

// CreateScopedTemp creates a uniquely named file in dir (os.TempDir when empty).
// Callers must defer Release so the file is removed on every path.
func CreateScopedTemp(dir, pattern string) (*ScopedTemp, error) {
	if dir != "" {
		if !Exists(dir) {
			return nil, errors.NewFileError(dir, "access", os.ErrNotExist)
		}
		if !IsDir(dir) {
			return nil, errors.NewValidationError("temp_dir", fmt.Sprintf("%s is not a directory", dir))
		}
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, errors.NewFileError(filepath.Join(dir, pattern), "create_temp", err)
	}
	return &ScopedTemp{File: f}, nil
}

// WriteFile writes data to a file, creating it if necessary.
// It validates the path and creates parent directories if needed.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewFileError(path, "create_dir", err)
	}

	if err := validatePath(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewFileError(path, "write", err)
	}
	return nil
}

// WriteJSON marshals v with indentation and writes it to path.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewFileError(path, "marshal", err)
	}
	return WriteFile(path, data)
}

// ReadJSON reads path and unmarshals it into v.
func ReadJSON(path string, v any) error {
	data, err := ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewFileError(path, "unmarshal", err)
	}
	return nil
}

// ReadFile reads the entire file and returns its contents.
// It validates the path and checks if the file exists and is readable.
func ReadFile(path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewFileError(path, "stat", err)
	}
	if info.IsDir() {
		return nil, errors.NewValidationError("path", "path is a directory, expected a file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFileError(path, "read", err)
	}
	return data, nil
}

// CopyFromReader streams r into a new file at path, creating parent
// directories. The partially written file is removed when the copy fails.
func CopyFromReader(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errors.NewFileError(path, "create_dir", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, errors.NewFileError(path, "create", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(path)
		return n, errors.NewFileError(path, "copy", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return n, errors.NewFileError(path, "close", err)
	}
	return n, nil
}

// Exists checks if a file or directory exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir checks if the path is a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile checks if the path is a regular file
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
