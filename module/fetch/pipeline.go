// Package fetch downloads a file from a URL and registers it as a versioned
// artifact with a tracking backend.
package fetch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/harness/fetch-artifact/module/tracking"
	"github.com/harness/fetch-artifact/util/common"
	"github.com/harness/fetch-artifact/util/common/errors"
	"github.com/harness/fetch-artifact/util/common/fileutil"
	"github.com/harness/fetch-artifact/util/common/progress"

	"github.com/rs/zerolog"
)

const tempPattern = "fetch-artifact-*"

// Fetcher streams the resource at url into w.
type Fetcher interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// RunStarter opens tracking runs. *tracking.Tracker satisfies it.
type RunStarter interface {
	InitRun(ctx context.Context, opts tracking.RunOptions) (*tracking.Run, error)
}

// Pipeline runs download-then-register for one Request at a time.
type Pipeline struct {
	fetcher     Fetcher
	tracker     RunStarter
	logger      zerolog.Logger
	reporter    progress.Reporter
	tempDir     string
	waitTimeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithReporter sets where user-facing progress messages go.
func WithReporter(r progress.Reporter) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.reporter = r
		}
	}
}

// WithTempDir sets the directory for the downloaded file. Empty means
// os.TempDir.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithWaitTimeout bounds how long Run waits for the artifact to be
// committed. Zero waits until the context is done.
func WithWaitTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.waitTimeout = d }
}

// NewPipeline returns a Pipeline downloading with fetcher and registering
// through tracker.
func NewPipeline(fetcher Fetcher, tracker RunStarter, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:  fetcher,
		tracker:  tracker,
		logger:   zerolog.Nop(),
		reporter: progress.NewNopReporter(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run downloads req.SourceURL into a temporary file, then registers that
// file as an artifact. The download finishes before any tracking call, and
// the temporary file is removed before Run returns.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := p.logger.With().Str("artifact_name", req.ArtifactName).Logger()
	filename := DeriveFilename(req.SourceURL)
	if filename == "" {
		logger.Warn().Str("url", req.SourceURL).Msg("URL has no file name, using the temporary file name")
	}

	p.reporter.Start(fmt.Sprintf("Fetching %s", req.SourceURL))
	defer p.reporter.End()

	tmp, err := fileutil.CreateScopedTemp(p.tempDir, tempPattern)
	if err != nil {
		p.reporter.Error(err.Error())
		return nil, err
	}
	defer func() {
		if err := tmp.Release(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove temporary file")
		}
	}()

	logger.Info().Msgf("Downloading %s ...", req.SourceURL)
	p.reporter.Step("Downloading")
	size, err := p.fetcher.Download(ctx, req.SourceURL, tmp)
	if err != nil {
		p.reporter.Error(err.Error())
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		p.reporter.Error(err.Error())
		return nil, errors.NewFileError(tmp.Path(), "close", err)
	}
	logger.Debug().Str("path", tmp.Path()).Str("size", common.GetSize(size)).Msg("Downloaded to temporary file")

	res, err := p.register(ctx, req, tmp.Path(), filename, logger)
	if err != nil {
		p.reporter.Error(err.Error())
		return nil, err
	}
	res.Duration = time.Since(start)

	p.reporter.Success(fmt.Sprintf("Registered %s:%s (%s)", res.Name, res.Version, common.GetSize(res.Size)))
	return res, nil
}

func (p *Pipeline) register(ctx context.Context, req Request, localPath, filename string, logger zerolog.Logger) (res *Result, err error) {
	logger.Info().Msg("Creating run")
	p.reporter.Step("Creating run")
	run, err := p.tracker.InitRun(ctx, tracking.RunOptions{
		JobType: JobType,
		Config: map[string]any{
			"file_url":      req.SourceURL,
			"artifact_name": req.ArtifactName,
			"artifact_type": req.ArtifactType,
		},
	})
	if err != nil {
		return nil, errors.NewRegistrationError("init_run", "", err)
	}
	logger = logger.With().Str("run_id", run.ID()).Logger()

	defer func() {
		// The run is closed even when ctx was cancelled.
		ferr := run.Finish(context.WithoutCancel(ctx), err)
		if ferr == nil {
			return
		}
		if err == nil {
			err = ferr
			res = nil
			return
		}
		logger.Warn().Err(ferr).Msg("Failed to mark run as failed")
	}()

	logger.Info().Msg("Creating artifact")
	p.reporter.Step("Creating artifact")
	artifact, err := tracking.NewArtifact(req.ArtifactName, req.ArtifactType, req.Description, req.metadata())
	if err != nil {
		return nil, err
	}
	entry, err := artifact.AddFile(localPath, filename)
	if err != nil {
		return nil, err
	}

	logger.Info().Msg("Logging artifact")
	p.reporter.Step("Logging artifact")
	if err = run.LogArtifact(ctx, artifact); err != nil {
		return nil, err
	}

	waitCtx := ctx
	if p.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.waitTimeout)
		defer cancel()
	}
	p.reporter.Step("Waiting for upload to be committed")
	if err = artifact.Wait(waitCtx); err != nil {
		return nil, err
	}

	v := artifact.Version()
	logger.Info().Str("artifact", v.QualifiedName()).Str("digest", entry.Digest.String()).Msg("Artifact committed")
	return &Result{
		Filename:   entry.Path,
		Size:       entry.Size,
		Digest:     entry.Digest,
		RunID:      run.ID(),
		ArtifactID: v.ID,
		Name:       v.Name,
		Type:       v.Type,
		Version:    v.Version,
		State:      v.State,
		Metadata:   v.Metadata,
	}, nil
}
