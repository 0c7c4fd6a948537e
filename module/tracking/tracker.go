// Package tracking is a small experiment-tracking SDK: runs, artifacts and
// the wait-for-durability handshake, over a pluggable Backend.
package tracking

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/rs/zerolog"
)

const defaultPollInterval = 2 * time.Second

// UploadWrapper lets callers observe upload streams, e.g. with a progress bar.
// The returned func is called once the upload finishes.
type UploadWrapper func(size int64, r io.Reader, name string) (io.Reader, func())

// RunOptions configure InitRun.
type RunOptions struct {
	JobType string
	Name    string
	Config  map[string]any
}

// Tracker opens runs against a Backend.
type Tracker struct {
	backend      Backend
	logger       zerolog.Logger
	pollInterval time.Duration
	wrapUpload   UploadWrapper
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used by the tracker and the runs it creates.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithPollInterval sets how often Artifact.Wait polls the backend.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithUploadWrapper wraps every file stream handed to Backend.UploadFile.
func WithUploadWrapper(w UploadWrapper) Option {
	return func(t *Tracker) { t.wrapUpload = w }
}

// New returns a Tracker over backend.
func New(backend Backend, opts ...Option) *Tracker {
	t := &Tracker{
		backend:      backend,
		logger:       zerolog.Nop(),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// InitRun opens a run on the backend.
func (t *Tracker) InitRun(ctx context.Context, opts RunOptions) (*Run, error) {
	if opts.JobType == "" {
		return nil, errors.NewValidationError("job_type", "must not be empty")
	}
	info, err := t.backend.CreateRun(ctx, RunSpec{
		JobType: opts.JobType,
		Name:    opts.Name,
		Config:  opts.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	logger := t.logger.With().
		Str("run_id", info.ID).
		Str("job_type", info.JobType).
		Logger()
	logger.Debug().Msg("Run started")

	return &Run{
		info:    *info,
		tracker: t,
		logger:  logger,
	}, nil
}
