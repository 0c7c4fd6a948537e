package tracking

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/rs/zerolog"
)

// Run is an open tracking run. Artifacts logged through it are attributed to it.
type Run struct {
	info     RunInfo
	tracker  *Tracker
	logger   zerolog.Logger
	finished bool
}

// ID returns the backend identifier of the run.
func (r *Run) ID() string {
	return r.info.ID
}

// Info returns the run as reported by the backend at creation.
func (r *Run) Info() RunInfo {
	return r.info
}

// LogArtifact creates a new artifact version, uploads every file and commits
// it. When the backend already holds a committed version with identical
// contents, that version is reused and nothing is uploaded. Call a.Wait to
// block until the version is durable.
func (r *Run) LogArtifact(ctx context.Context, a *Artifact) error {
	if r.finished {
		return fmt.Errorf("log artifact %s: run %s is finished: %w", a.Name, r.info.ID, errors.ErrInvalidOperation)
	}
	if a.version != nil {
		return fmt.Errorf("log artifact %s: already logged as %s: %w", a.Name, a.version.QualifiedName(), errors.ErrInvalidOperation)
	}
	if len(a.entries) == 0 {
		return errors.NewValidationError("artifact", fmt.Sprintf("%s has no files", a.Name))
	}

	backend := r.tracker.backend
	spec := ArtifactSpec{
		Name:        a.Name,
		Type:        a.Type,
		Description: a.Description,
		Metadata:    a.Metadata,
		RunID:       r.info.ID,
		Digest:      a.Digest(),
		Entries:     a.Entries(),
	}

	version, err := backend.CreateArtifact(ctx, spec)
	if err != nil {
		return errors.NewRegistrationError("create_artifact", a.Name, err)
	}
	logger := r.logger.With().
		Str("artifact_id", version.ID).
		Str("version", version.Version).
		Logger()

	a.backend = backend
	a.pollInterval = r.tracker.pollInterval
	a.version = version

	if version.State == StateCommitted {
		logger.Info().Str("digest", version.Digest.String()).
			Msg("Artifact contents unchanged, reusing existing version")
		return nil
	}

	for _, e := range a.entries {
		if err := r.upload(ctx, version.ID, e); err != nil {
			return errors.NewRegistrationError("upload", a.Name, err)
		}
		logger.Debug().Str("file", e.Path).Int64("size", e.Size).Msg("Uploaded file")
	}

	committed, err := backend.CommitArtifact(ctx, version.ID)
	if err != nil {
		return errors.NewRegistrationError("commit", a.Name, err)
	}
	a.version = committed
	logger.Debug().Str("state", string(committed.State)).Msg("Artifact committed")
	return nil
}

func (r *Run) upload(ctx context.Context, artifactID string, e fileEntry) error {
	f, err := os.Open(e.localPath)
	if err != nil {
		return errors.NewFileError(e.localPath, "open", err)
	}
	defer f.Close()

	var body io.Reader = f
	if wrap := r.tracker.wrapUpload; wrap != nil {
		wrapped, done := wrap(e.Size, f, e.Path)
		defer done()
		body = wrapped
	}
	return r.tracker.backend.UploadFile(ctx, artifactID, e.ManifestEntry, body)
}

// Finish closes the run, marking it failed when runErr is non-nil.
// Calling Finish more than once is a no-op.
func (r *Run) Finish(ctx context.Context, runErr error) error {
	if r.finished {
		return nil
	}
	r.finished = true

	status := RunFinished
	if runErr != nil {
		status = RunFailed
	}
	if err := r.tracker.backend.FinishRun(ctx, r.info.ID, status); err != nil {
		return errors.NewRegistrationError("finish_run", "", err)
	}
	now := time.Now().UTC()
	r.info.Status = status
	r.info.FinishedAt = &now
	r.logger.Debug().Str("status", string(status)).Msg("Run finished")
	return nil
}
