package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("file_url", "must not be empty")
	assert.EqualError(t, err, "validation failed for file_url: must not be empty")
	assert.True(t, Is(err, ErrInvalidArgument))

	wrapped := fmt.Errorf("parse request: %w", err)
	var vErr *ValidationError
	assert.True(t, As(wrapped, &vErr))
	assert.Equal(t, "file_url", vErr.Field)
}

func TestFileError(t *testing.T) {
	err := NewFileError("/tmp/x", "write", io.ErrShortWrite)
	assert.EqualError(t, err, "write operation failed on /tmp/x: short write")
	assert.True(t, Is(err, io.ErrShortWrite))

	assert.EqualError(t, NewFileError("/tmp/x", "remove", nil), "remove operation failed on /tmp/x")
}

func TestDownloadError(t *testing.T) {
	err := NewDownloadError("https://example.org/a.csv", 404, "404 Not Found")
	assert.EqualError(t, err, "download of https://example.org/a.csv failed: server returned 404 Not Found")

	var dErr *DownloadError
	assert.True(t, As(Wrap(err, "fetch"), &dErr))
	assert.Equal(t, 404, dErr.StatusCode)
}

func TestRegistrationError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"with artifact and cause": {
			err:  NewRegistrationError("log_artifact", "sample", io.EOF),
			want: "artifact sample: log_artifact failed: EOF",
		},
		"with artifact only": {
			err:  NewRegistrationError("wait", "sample", nil),
			want: "artifact sample: wait failed",
		},
		"stage and cause": {
			err:  NewRegistrationError("init_run", "", io.EOF),
			want: "init_run failed: EOF",
		},
		"stage only": {
			err:  NewRegistrationError("finish_run", "", nil),
			want: "finish_run failed",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.EqualError(t, tc.err, tc.want)
		})
	}
	assert.True(t, Is(NewRegistrationError("init_run", "", io.EOF), io.EOF))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
	assert.EqualError(t, Wrap(io.EOF, "read body"), "read body: EOF")
}
