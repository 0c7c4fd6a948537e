package tracking

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/opencontainers/go-digest"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

type fileEntry struct {
	ManifestEntry
	localPath string
}

// Artifact is a client-side handle for an artifact being assembled and logged.
// It is populated with files via AddFile, submitted with Run.LogArtifact and
// awaited with Wait.
type Artifact struct {
	Name        string
	Type        string
	Description string
	Metadata    map[string]any

	entries []fileEntry

	backend      Backend
	pollInterval time.Duration
	version      *ArtifactVersion
}

// ValidateName reports whether name is usable as an artifact name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return errors.NewValidationError("artifact_name",
			fmt.Sprintf("%q must start with a letter or digit and contain only letters, digits, '.', '_' or '-'", name))
	}
	return nil
}

// NewArtifact validates name and type and returns an empty artifact.
// metadata is copied.
func NewArtifact(name, artifactType, description string, metadata map[string]any) (*Artifact, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(artifactType) == "" {
		return nil, errors.NewValidationError("artifact_type", "must not be empty")
	}

	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	return &Artifact{
		Name:        name,
		Type:        artifactType,
		Description: description,
		Metadata:    md,
	}, nil
}

// AddFile attaches the file at localPath under name. An empty name defaults
// to the base name of localPath. The size and sha256 digest are computed now,
// so the file must not change before the artifact is logged.
func (a *Artifact) AddFile(localPath, name string) (ManifestEntry, error) {
	if a.version != nil {
		return ManifestEntry{}, fmt.Errorf("add %s to %s: %w", name, a.Name, errors.ErrInvalidOperation)
	}
	if name == "" {
		name = filepath.Base(localPath)
	}
	name = filepath.ToSlash(name)
	if err := validateEntryPath(name); err != nil {
		return ManifestEntry{}, err
	}
	for _, e := range a.entries {
		if e.Path == name {
			return ManifestEntry{}, errors.NewValidationError("name", fmt.Sprintf("file %q already added", name))
		}
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return ManifestEntry{}, errors.NewFileError(localPath, "stat", err)
	}
	if info.IsDir() {
		return ManifestEntry{}, errors.NewValidationError("path", "path is a directory, expected a file")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return ManifestEntry{}, errors.NewFileError(localPath, "open", err)
	}
	defer f.Close()

	dgst, err := digest.FromReader(f)
	if err != nil {
		return ManifestEntry{}, errors.NewFileError(localPath, "digest", err)
	}

	entry := ManifestEntry{Path: name, Size: info.Size(), Digest: dgst}
	a.entries = append(a.entries, fileEntry{ManifestEntry: entry, localPath: localPath})
	return entry, nil
}

// Entries returns the manifest entries sorted by path.
func (a *Artifact) Entries() []ManifestEntry {
	out := make([]ManifestEntry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.ManifestEntry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Digest identifies the artifact contents independent of name and metadata.
func (a *Artifact) Digest() digest.Digest {
	return ManifestDigest(a.Entries())
}

// Version returns the backend record once the artifact has been logged.
func (a *Artifact) Version() *ArtifactVersion {
	return a.version
}

// Wait blocks until the backend reports the logged version as committed,
// the version fails, or ctx is done.
func (a *Artifact) Wait(ctx context.Context) error {
	if a.version == nil || a.backend == nil {
		return fmt.Errorf("wait for %s: artifact has not been logged: %w", a.Name, errors.ErrInvalidOperation)
	}

	interval := a.pollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for {
		switch a.version.State {
		case StateCommitted:
			return nil
		case StateFailed:
			return errors.NewRegistrationError("wait", a.Name,
				fmt.Errorf("version %s was marked %s by the backend", a.version.Version, StateFailed))
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.NewRegistrationError("wait", a.Name, ctx.Err())
		case <-timer.C:
		}

		v, err := a.backend.GetArtifact(ctx, a.version.ID)
		if err != nil {
			return errors.NewRegistrationError("wait", a.Name, err)
		}
		a.version = v
	}
}

// ManifestDigest hashes "path digest" lines of the entries in path order.
func ManifestDigest(entries []ManifestEntry) digest.Digest {
	sorted := make([]ManifestEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	digester := digest.Canonical.Digester()
	for _, e := range sorted {
		fmt.Fprintf(digester.Hash(), "%s %s\n", e.Path, e.Digest)
	}
	return digester.Digest()
}

func validateEntryPath(name string) error {
	if name == "" || name == "." || name == "/" {
		return errors.NewValidationError("name", "file name must not be empty")
	}
	if path.IsAbs(name) || path.Clean(name) != name {
		return errors.NewValidationError("name", fmt.Sprintf("file name %q must be a clean relative path", name))
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return errors.NewValidationError("name", fmt.Sprintf("file name %q escapes the artifact root", name))
		}
	}
	return nil
}
