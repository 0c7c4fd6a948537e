// Package local implements tracking.Backend on the local filesystem.
//
// Layout under <root>/<project>:
//
//	runs/<run-id>.json
//	artifacts/<name>/v<N>/manifest.json
//	artifacts/<name>/v<N>/files/<path>
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harness/fetch-artifact/module/tracking"
	"github.com/harness/fetch-artifact/util/common/errors"
	"github.com/harness/fetch-artifact/util/common/fileutil"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"
)

const (
	manifestFile = "manifest.json"
	filesDir     = "files"
)

// Store is a filesystem tracking backend. It assumes a single writer.
type Store struct {
	root   string
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a Store rooted at dir/project, creating it if needed.
func NewStore(dir, project string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.NewValidationError("store_dir", "must not be empty")
	}
	if project == "" || strings.ContainsAny(project, `/\`) || project == "." || project == ".." {
		return nil, errors.NewValidationError("project", fmt.Sprintf("invalid project name %q", project))
	}

	root := filepath.Join(dir, project)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.NewFileError(root, "create_dir", err)
	}

	s := &Store{
		root:   root,
		logger: zerolog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the project directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) runPath(id string) string {
	return filepath.Join(s.root, "runs", id+".json")
}

func (s *Store) artifactDir(name string) string {
	return filepath.Join(s.root, "artifacts", name)
}

func (s *Store) versionDir(name, version string) string {
	return filepath.Join(s.artifactDir(name), version)
}

// CreateRun records a new run with a random id.
func (s *Store) CreateRun(_ context.Context, spec tracking.RunSpec) (*tracking.RunInfo, error) {
	info := &tracking.RunInfo{
		ID:        uuid.New().String(),
		Name:      spec.Name,
		JobType:   spec.JobType,
		Status:    tracking.RunRunning,
		Config:    spec.Config,
		CreatedAt: s.now(),
	}
	if err := fileutil.WriteJSON(s.runPath(info.ID), info); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("run_id", info.ID).Msg("Created run")
	return info, nil
}

// FinishRun stores the final status of a run.
func (s *Store) FinishRun(_ context.Context, runID string, status tracking.RunStatus) error {
	info, err := s.GetRun(runID)
	if err != nil {
		return err
	}
	now := s.now()
	info.Status = status
	info.FinishedAt = &now
	return fileutil.WriteJSON(s.runPath(runID), info)
}

// GetRun loads a run record.
func (s *Store) GetRun(runID string) (*tracking.RunInfo, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, errors.NewValidationError("run_id", fmt.Sprintf("invalid run id %q", runID))
	}
	var info tracking.RunInfo
	if err := fileutil.ReadJSON(s.runPath(runID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateArtifact allocates the next version of spec.Name. When the latest
// committed version has the same digest it is returned unchanged.
func (s *Store) CreateArtifact(_ context.Context, spec tracking.ArtifactSpec) (*tracking.ArtifactVersion, error) {
	if err := checkName(spec.Name); err != nil {
		return nil, err
	}
	if err := spec.Digest.Validate(); err != nil {
		return nil, errors.NewValidationError("digest", err.Error())
	}
	for _, e := range spec.Entries {
		clean := path.Clean(e.Path)
		if e.Path == "" || clean != e.Path || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, errors.NewValidationError("path", fmt.Sprintf("invalid entry path %q", e.Path))
		}
	}

	versions, err := s.ListVersions(spec.Name)
	if err != nil {
		return nil, err
	}

	next := 0
	if len(versions) > 0 {
		latest := versions[len(versions)-1]
		if latest.Type != spec.Type {
			return nil, errors.NewValidationError("artifact_type",
				fmt.Sprintf("artifact %s already exists with type %q, got %q", spec.Name, latest.Type, spec.Type))
		}
		if committed := latestCommitted(versions); committed != nil && committed.Digest == spec.Digest {
			return committed, nil
		}
		n, _ := parseVersion(latest.Version)
		next = n + 1
	}

	version := "v" + strconv.Itoa(next)
	v := &tracking.ArtifactVersion{
		ID:          spec.Name + ":" + version,
		Name:        spec.Name,
		Type:        spec.Type,
		Version:     version,
		Description: spec.Description,
		Metadata:    spec.Metadata,
		RunID:       spec.RunID,
		Digest:      spec.Digest,
		State:       tracking.StatePending,
		Entries:     spec.Entries,
		CreatedAt:   s.now(),
	}
	if err := s.writeVersion(v); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("artifact_id", v.ID).Msg("Created artifact version")
	return v, nil
}

// UploadFile stores the contents of one manifest entry, verifying its digest.
func (s *Store) UploadFile(_ context.Context, artifactID string, entry tracking.ManifestEntry, body io.Reader) error {
	v, err := s.GetVersion(artifactID)
	if err != nil {
		return err
	}
	if v.State != tracking.StatePending {
		return fmt.Errorf("upload %s to %s in state %s: %w", entry.Path, artifactID, v.State, errors.ErrInvalidOperation)
	}

	expected, ok := findEntry(v.Entries, entry.Path)
	if !ok {
		return errors.NewValidationError("path", fmt.Sprintf("%s is not part of %s", entry.Path, artifactID))
	}

	dest := filepath.Join(s.versionDir(v.Name, v.Version), filesDir, filepath.FromSlash(expected.Path))
	verifier := expected.Digest.Verifier()
	n, err := fileutil.CopyFromReader(dest, io.TeeReader(body, verifier))
	if err != nil {
		return err
	}
	if n != expected.Size || !verifier.Verified() {
		os.Remove(dest)
		return fmt.Errorf("upload %s to %s: content does not match digest %s (%d bytes received, %d expected)",
			entry.Path, artifactID, expected.Digest, n, expected.Size)
	}
	return nil
}

// CommitArtifact marks a version committed once every entry is present.
func (s *Store) CommitArtifact(_ context.Context, artifactID string) (*tracking.ArtifactVersion, error) {
	v, err := s.GetVersion(artifactID)
	if err != nil {
		return nil, err
	}
	if v.State == tracking.StateCommitted {
		return v, nil
	}

	if err := s.verify(v); err != nil {
		v.State = tracking.StateFailed
		if werr := s.writeVersion(v); werr != nil {
			return nil, werr
		}
		return nil, fmt.Errorf("commit %s: %w", artifactID, err)
	}

	v.State = tracking.StateCommitted
	if err := s.writeVersion(v); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("artifact_id", v.ID).Msg("Committed artifact version")
	return v, nil
}

// GetArtifact returns the stored version.
func (s *Store) GetArtifact(_ context.Context, artifactID string) (*tracking.ArtifactVersion, error) {
	return s.GetVersion(artifactID)
}

// GetVersion loads "name:vN".
func (s *Store) GetVersion(artifactID string) (*tracking.ArtifactVersion, error) {
	name, version, ok := strings.Cut(artifactID, ":")
	if !ok || checkName(name) != nil {
		return nil, errors.NewValidationError("artifact_id", fmt.Sprintf("invalid artifact id %q", artifactID))
	}
	if _, err := parseVersion(version); err != nil {
		return nil, errors.NewValidationError("artifact_id", fmt.Sprintf("invalid artifact id %q", artifactID))
	}

	var v tracking.ArtifactVersion
	if err := fileutil.ReadJSON(filepath.Join(s.versionDir(name, version), manifestFile), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVersions returns every version of name ordered from oldest to newest.
func (s *Store) ListVersions(name string) ([]*tracking.ArtifactVersion, error) {
	dir := s.artifactDir(name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewFileError(dir, "read_dir", err)
	}

	type numbered struct {
		n int
		v *tracking.ArtifactVersion
	}
	var found []numbered
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := parseVersion(e.Name())
		if err != nil {
			continue
		}
		v, err := s.GetVersion(name + ":" + e.Name())
		if err != nil {
			return nil, err
		}
		found = append(found, numbered{n: n, v: v})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	out := make([]*tracking.ArtifactVersion, 0, len(found))
	for _, f := range found {
		out = append(out, f.v)
	}
	return out, nil
}

// FilePath returns where the contents of entry path of a version live on disk.
func (s *Store) FilePath(v *tracking.ArtifactVersion, entryPath string) string {
	return filepath.Join(s.versionDir(v.Name, v.Version), filesDir, filepath.FromSlash(entryPath))
}

func (s *Store) writeVersion(v *tracking.ArtifactVersion) error {
	return fileutil.WriteJSON(filepath.Join(s.versionDir(v.Name, v.Version), manifestFile), v)
}

func latestCommitted(versions []*tracking.ArtifactVersion) *tracking.ArtifactVersion {
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].State == tracking.StateCommitted {
			return versions[i]
		}
	}
	return nil
}

func findEntry(entries []tracking.ManifestEntry, entryPath string) (tracking.ManifestEntry, bool) {
	for _, e := range entries {
		if e.Path == entryPath {
			return e, true
		}
	}
	return tracking.ManifestEntry{}, false
}

func checkName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\:`) {
		return errors.NewValidationError("artifact_name", fmt.Sprintf("invalid artifact name %q", name))
	}
	return nil
}

func parseVersion(v string) (int, error) {
	if !strings.HasPrefix(v, "v") {
		return 0, fmt.Errorf("version %q must start with 'v'", v)
	}
	n, err := strconv.Atoi(v[1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid version %q", v)
	}
	return n, nil
}

// verify re-hashes every stored file of v against its manifest entry.
func (s *Store) verify(v *tracking.ArtifactVersion) error {
	for _, e := range v.Entries {
		p := s.FilePath(v, e.Path)
		f, err := os.Open(p)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file %s was never uploaded", e.Path)
			}
			return errors.NewFileError(p, "open", err)
		}
		got, err := digest.FromReader(f)
		f.Close()
		if err != nil {
			return errors.NewFileError(p, "digest", err)
		}
		if got != e.Digest {
			return fmt.Errorf("file %s has digest %s, expected %s", e.Path, got, e.Digest)
		}
	}
	return nil
}

var _ tracking.Backend = (*Store)(nil)
