package cmdutils

import (
	"fmt"
	"io"
	"os"

	"github.com/harness/fetch-artifact/config"
	"github.com/harness/fetch-artifact/internal/terminal"
	"github.com/harness/fetch-artifact/module/fetch"
	"github.com/harness/fetch-artifact/module/tracking"
	"github.com/harness/fetch-artifact/module/tracking/local"
	"github.com/harness/fetch-artifact/module/tracking/remote"
	"github.com/harness/fetch-artifact/util"
	"github.com/harness/fetch-artifact/util/common/errors"
	"github.com/harness/fetch-artifact/util/common/progress"

	"github.com/rs/zerolog"
)

// Factory builds the collaborators a command needs from the resolved flags.
// Fields are replaceable so tests can inject fakes.
type Factory struct {
	Out    io.Writer
	ErrOut io.Writer

	Getenv  func(string) string
	HomeDir func() (string, error)

	// Terminal is filled in once flags are parsed.
	Terminal terminal.Info

	TrackingBackend func(g *config.GlobalFlags, logger zerolog.Logger) (tracking.Backend, error)
}

func NewFactory() *Factory {
	return &Factory{
		Out:             os.Stdout,
		ErrOut:          os.Stderr,
		Getenv:          os.Getenv,
		HomeDir:         os.UserHomeDir,
		TrackingBackend: newTrackingBackend,
	}
}

// Logger returns the logger for this invocation, writing to ErrOut.
func (f *Factory) Logger(g *config.GlobalFlags) (zerolog.Logger, error) {
	return util.NewLogger(f.ErrOut, g.LogLevel, g.LogJSON, !f.Terminal.ColorEnabled)
}

// Reporter returns a styled step reporter on terminals and a silent one
// otherwise, where the log already carries the same information.
func (f *Factory) Reporter() progress.Reporter {
	if !f.Terminal.ProgressEnabled {
		return progress.NewNopReporter()
	}
	return progress.NewAutoReporter()
}

// Tracker wraps the configured backend.
func (f *Factory) Tracker(g *config.GlobalFlags, logger zerolog.Logger) (*tracking.Tracker, error) {
	backend, err := f.TrackingBackend(g, logger)
	if err != nil {
		return nil, err
	}

	opts := []tracking.Option{
		tracking.WithLogger(logger.With().Str("backend", g.Tracking.Backend).Logger()),
		tracking.WithPollInterval(g.Tracking.PollInterval),
	}
	if f.Terminal.ProgressEnabled {
		out := f.ErrOut
		opts = append(opts, tracking.WithUploadWrapper(func(size int64, r io.Reader, name string) (io.Reader, func()) {
			return progress.Reader(size, r, "Uploading "+name, out)
		}))
	}
	return tracking.New(backend, opts...), nil
}

// Downloader builds the HTTP downloader.
func (f *Factory) Downloader(g *config.GlobalFlags, logger zerolog.Logger) (*fetch.Downloader, error) {
	opts := fetch.DownloaderOptions{
		Retries:      g.Download.Retries,
		Timeout:      g.Download.Timeout,
		UserAgent:    g.Download.UserAgent,
		AllowedHosts: g.Download.AllowedHosts,
		Logger:       logger.With().Str("component", "download").Logger(),
	}
	if f.Terminal.ProgressEnabled {
		opts.ProgressOut = f.ErrOut
	}
	return fetch.NewDownloader(opts)
}

func newTrackingBackend(g *config.GlobalFlags, logger zerolog.Logger) (tracking.Backend, error) {
	switch g.Tracking.Backend {
	case config.BackendRemote:
		c, err := remote.New(remote.Options{
			BaseURL: g.Tracking.APIBaseURL,
			APIKey:  g.Tracking.APIKey,
			Entity:  g.Tracking.Entity,
			Project: g.Tracking.Project,
			Timeout: g.Tracking.Timeout,
			Retries: g.Tracking.Retries,
			Debug:   g.LogLevel == zerolog.LevelTraceValue,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendLocal:
		s, err := local.NewStore(g.Tracking.StoreDir, g.Tracking.Project, local.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.NewValidationError("backend", fmt.Sprintf("unknown tracking backend %q", g.Tracking.Backend))
}
