package cmdutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArgFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestExpandArgFiles(t *testing.T) {
	dir := t.TempDir()
	inner := writeArgFile(t, dir, "inner.txt", "--artifact_type\r\nraw_data\r\n")
	outer := writeArgFile(t, dir, "outer.txt", "--file_url\nhttps://example.org/a b.csv\n\n   \n@"+inner+"\n")

	got, err := ExpandArgFiles([]string{"--format", "json", "@" + outer, "--", "@not-a-file"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--format", "json",
		"--file_url", "https://example.org/a b.csv",
		"--artifact_type", "raw_data",
		"--", "@not-a-file",
	}, got)
}

func TestExpandArgFiles_NoArgFiles(t *testing.T) {
	args := []string{"--file_url", "https://example.org/a.csv"}
	got, err := ExpandArgFiles(args)
	require.NoError(t, err)
	assert.Equal(t, args, got)
}

func TestExpandArgFiles_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ExpandArgFiles([]string{"@" + filepath.Join(t.TempDir(), "nope.txt")})
		require.Error(t, err)
		var fErr *errors.FileError
		assert.True(t, errors.As(err, &fErr))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bare at sign", func(t *testing.T) {
		_, err := ExpandArgFiles([]string{"@"})
		assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	})

	t.Run("self reference", func(t *testing.T) {
		dir := t.TempDir()
		p := filepath.Join(dir, "loop.txt")
		require.NoError(t, os.WriteFile(p, []byte("@"+p+"\n"), 0600))

		_, err := ExpandArgFiles([]string{"@" + p})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nested deeper than")
	})
}
