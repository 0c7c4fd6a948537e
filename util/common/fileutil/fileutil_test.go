package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateScopedTemp(t *testing.T) {
	t.Run("release removes the file", func(t *testing.T) {
		dir := t.TempDir()
		tmp, err := CreateScopedTemp(dir, "download-*")
		require.NoError(t, err)

		_, err = tmp.WriteString("payload")
		require.NoError(t, err)
		assert.True(t, IsFile(tmp.Path()))
		assert.Equal(t, dir, filepath.Dir(tmp.Path()))

		require.NoError(t, tmp.Release())
		assert.False(t, Exists(tmp.Path()))
	})

	t.Run("release is idempotent and tolerates a closed file", func(t *testing.T) {
		tmp, err := CreateScopedTemp(t.TempDir(), "download-*")
		require.NoError(t, err)
		require.NoError(t, tmp.Close())

		assert.NoError(t, tmp.Release())
		assert.NoError(t, tmp.Release())
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := CreateScopedTemp(filepath.Join(t.TempDir(), "missing"), "download-*")
		var fErr *errors.FileError
		require.True(t, errors.As(err, &fErr))
		assert.Equal(t, "access", fErr.Op)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("regular file as directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "plain")
		require.NoError(t, os.WriteFile(file, nil, 0600))

		_, err := CreateScopedTemp(file, "download-*")
		assert.ErrorIs(t, err, errors.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "is not a directory")
	})
}

func TestCopyFromReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "file.txt")
	n, err := CopyFromReader(path, strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestJSONRoundTripOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "manifest.json")
	require.NoError(t, WriteJSON(path, map[string]int{"version": 3}))

	var got map[string]int
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, 3, got["version"])
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile("")
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = ReadFile(dir)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	var fErr *errors.FileError
	assert.True(t, errors.As(err, &fErr))
}
