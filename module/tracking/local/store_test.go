package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harness/fetch-artifact/module/tracking"
	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "demo")
	require.NoError(t, err)
	return s
}

func specFor(name, artifactType string, files map[string]string) tracking.ArtifactSpec {
	var entries []tracking.ManifestEntry
	for p, content := range files {
		entries = append(entries, tracking.ManifestEntry{
			Path:   p,
			Size:   int64(len(content)),
			Digest: digest.FromString(content),
		})
	}
	return tracking.ArtifactSpec{
		Name:    name,
		Type:    artifactType,
		RunID:   "run",
		Digest:  tracking.ManifestDigest(entries),
		Entries: entries,
	}
}

// publish creates, uploads and commits a single-file version.
func publish(t *testing.T, s *Store, name, artifactType, file, content string) *tracking.ArtifactVersion {
	t.Helper()
	ctx := context.Background()
	v, err := s.CreateArtifact(ctx, specFor(name, artifactType, map[string]string{file: content}))
	require.NoError(t, err)
	if v.State == tracking.StateCommitted {
		return v
	}
	require.NoError(t, s.UploadFile(ctx, v.ID, v.Entries[0], strings.NewReader(content)))
	committed, err := s.CommitArtifact(ctx, v.ID)
	require.NoError(t, err)
	return committed
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir, "demo")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "demo"), s.Root())
	assert.DirExists(t, s.Root())

	for _, project := range []string{"", "..", "a/b", `a\b`} {
		_, err := NewStore(dir, project)
		assert.ErrorIs(t, err, errors.ErrInvalidArgument, "project %q", project)
	}

	_, err = NewStore("", "demo")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestStore_Runs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	info, err := s.CreateRun(ctx, tracking.RunSpec{JobType: "download_data", Config: map[string]any{"k": "v"}})
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, tracking.RunRunning, info.Status)
	assert.FileExists(t, filepath.Join(s.Root(), "runs", info.ID+".json"))

	require.NoError(t, s.FinishRun(ctx, info.ID, tracking.RunFailed))

	got, err := s.GetRun(info.ID)
	require.NoError(t, err)
	assert.Equal(t, tracking.RunFailed, got.Status)
	assert.Equal(t, "download_data", got.JobType)
	assert.Equal(t, "v", got.Config["k"])
	require.NotNil(t, got.FinishedAt)

	_, err = s.GetRun("../escape")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	err = s.FinishRun(ctx, "6f1c4f43-7d65-4c43-9a8a-0f7c6a3c1c11", tracking.RunFinished)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_Versioning(t *testing.T) {
	s := newTestStore(t)

	v0 := publish(t, s, "mnist", "dataset", "train.csv", "a,b\n1,2\n")
	assert.Equal(t, "v0", v0.Version)
	assert.Equal(t, "mnist:v0", v0.ID)
	assert.Equal(t, tracking.StateCommitted, v0.State)

	v1 := publish(t, s, "mnist", "dataset", "train.csv", "a,b\n3,4\n")
	assert.Equal(t, "v1", v1.Version)

	versions, err := s.ListVersions("mnist")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v0", versions[0].Version)
	assert.Equal(t, "v1", versions[1].Version)

	data, err := os.ReadFile(s.FilePath(v1, "train.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n3,4\n", string(data))

	none, err := s.ListVersions("unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_ReusesCommittedVersion(t *testing.T) {
	s := newTestStore(t)

	v0 := publish(t, s, "mnist", "dataset", "train.csv", "same")
	again, err := s.CreateArtifact(context.Background(), specFor("mnist", "dataset", map[string]string{"train.csv": "same"}))
	require.NoError(t, err)
	assert.Equal(t, v0.ID, again.ID)
	assert.Equal(t, tracking.StateCommitted, again.State)

	versions, err := s.ListVersions("mnist")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestStore_CreateArtifactValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	publish(t, s, "mnist", "dataset", "train.csv", "x")

	_, err := s.CreateArtifact(ctx, specFor("mnist", "model", map[string]string{"train.csv": "y"}))
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "artifact_type", verr.Field)

	for _, name := range []string{"", ".hidden", "a/b", "a:b"} {
		_, err := s.CreateArtifact(ctx, specFor(name, "dataset", map[string]string{"f": "x"}))
		assert.ErrorIs(t, err, errors.ErrInvalidArgument, "name %q", name)
	}

	for _, p := range []string{"../x", "/abs", "a/../b"} {
		_, err := s.CreateArtifact(ctx, specFor("other", "dataset", map[string]string{p: "x"}))
		assert.ErrorIs(t, err, errors.ErrInvalidArgument, "path %q", p)
	}

	bad := specFor("other", "dataset", map[string]string{"f": "x"})
	bad.Digest = "not-a-digest"
	_, err = s.CreateArtifact(ctx, bad)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestStore_UploadFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.CreateArtifact(ctx, specFor("data", "dataset", map[string]string{"f.bin": "payload"}))
	require.NoError(t, err)
	entry := v.Entries[0]

	t.Run("content mismatch", func(t *testing.T) {
		err := s.UploadFile(ctx, v.ID, entry, strings.NewReader("tampered"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match digest")
		assert.NoFileExists(t, s.FilePath(v, "f.bin"))
	})

	t.Run("unknown entry", func(t *testing.T) {
		other := tracking.ManifestEntry{Path: "other.bin", Size: 1, Digest: digest.FromString("x")}
		err := s.UploadFile(ctx, v.ID, other, strings.NewReader("x"))
		assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	})

	t.Run("after commit", func(t *testing.T) {
		require.NoError(t, s.UploadFile(ctx, v.ID, entry, strings.NewReader("payload")))
		_, err := s.CommitArtifact(ctx, v.ID)
		require.NoError(t, err)

		err = s.UploadFile(ctx, v.ID, entry, strings.NewReader("payload"))
		assert.ErrorIs(t, err, errors.ErrInvalidOperation)
	})
}

func TestStore_CommitMissingFileFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.CreateArtifact(ctx, specFor("data", "dataset", map[string]string{"f.bin": "payload"}))
	require.NoError(t, err)

	_, err = s.CommitArtifact(ctx, v.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never uploaded")

	got, err := s.GetArtifact(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StateFailed, got.State)

	// a failed version is not reused; the next attempt gets a new number
	next, err := s.CreateArtifact(ctx, specFor("data", "dataset", map[string]string{"f.bin": "payload"}))
	require.NoError(t, err)
	assert.Equal(t, "v1", next.Version)
}

func TestStore_GetVersionInvalidID(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"", "name", "name:1", "name:v-1", "../x:v0", "name:vx"} {
		_, err := s.GetVersion(id)
		assert.ErrorIs(t, err, errors.ErrInvalidArgument, "id %q", id)
	}

	_, err := s.GetVersion("missing:v0")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_WithTracker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "download")
	content := []byte("id,label\n1,cat\n2,dog\n")
	require.NoError(t, os.WriteFile(src, content, 0644))

	tr := tracking.New(s, tracking.WithPollInterval(time.Millisecond))
	run, err := tr.InitRun(ctx, tracking.RunOptions{JobType: "download_data"})
	require.NoError(t, err)

	a, err := tracking.NewArtifact("pets", "raw_data", "labelled pets", map[string]any{"original_url": "https://example.org/pets.csv"})
	require.NoError(t, err)
	_, err = a.AddFile(src, "pets.csv")
	require.NoError(t, err)

	require.NoError(t, run.LogArtifact(ctx, a))
	require.NoError(t, a.Wait(ctx))
	require.NoError(t, run.Finish(ctx, nil))

	v := a.Version()
	require.NotNil(t, v)
	assert.Equal(t, "pets:v0", v.QualifiedName())
	assert.Equal(t, run.ID(), v.RunID)
	assert.Equal(t, "https://example.org/pets.csv", v.Metadata["original_url"])

	stored, err := os.ReadFile(s.FilePath(v, "pets.csv"))
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	info, err := s.GetRun(run.ID())
	require.NoError(t, err)
	assert.Equal(t, tracking.RunFinished, info.Status)
}
