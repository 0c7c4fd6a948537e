package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harness/fetch-artifact/util/common"
	"github.com/harness/fetch-artifact/util/common/errors"
	"github.com/harness/fetch-artifact/util/common/progress"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const defaultUserAgent = "fetch-artifact"

// DownloaderOptions configure a Downloader.
type DownloaderOptions struct {
	// Retries is the number of extra attempts after a failed request.
	// Zero means a single attempt.
	Retries int
	// Timeout bounds each attempt, including reading the body. Zero means none.
	Timeout   time.Duration
	UserAgent string
	// AllowedHosts are glob patterns ("*.example.org") a URL host must match.
	// Empty allows every host.
	AllowedHosts []string
	// ProgressOut receives a progress bar when non-nil.
	ProgressOut io.Writer
	Logger      zerolog.Logger
}

// Downloader streams HTTP(S) resources into a writer.
type Downloader struct {
	client      *retryablehttp.Client
	allowed     []glob.Glob
	userAgent   string
	progressOut io.Writer
	logger      zerolog.Logger
}

// NewDownloader returns a Downloader for opts.
func NewDownloader(opts DownloaderOptions) (*Downloader, error) {
	if opts.Retries < 0 {
		return nil, errors.NewValidationError("download_retries", "must not be negative")
	}

	allowed := make([]glob.Glob, 0, len(opts.AllowedHosts))
	for _, pattern := range opts.AllowedHosts {
		g, err := glob.Compile(strings.ToLower(pattern), '.')
		if err != nil {
			return nil, errors.NewValidationError("allowed_hosts", fmt.Sprintf("invalid pattern %q: %v", pattern, err))
		}
		allowed = append(allowed, g)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.Retries
	client.Logger = leveledLogger{opts.Logger}
	// Hand the last response back so a non-2xx status surfaces as a DownloadError.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Timeout = opts.Timeout

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Downloader{
		client:      client,
		allowed:     allowed,
		userAgent:   ua,
		progressOut: opts.ProgressOut,
		logger:      opts.Logger,
	}, nil
}

// CheckURL reports whether rawURL may be fetched.
func (d *Downloader) CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewValidationError("file_url", err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewValidationError("file_url", fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if len(d.allowed) == 0 {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, g := range d.allowed {
		if g.Match(host) {
			return nil
		}
	}
	return fmt.Errorf("download %s: %w: %s", rawURL, errors.ErrHostNotAllowed, host)
}

// Download GETs rawURL and copies the response body into w as it arrives.
// It returns the number of bytes written.
func (d *Downloader) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	if err := d.CheckURL(rawURL); err != nil {
		return 0, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, errors.Wrap(err, "download "+rawURL)
	}
	req.Header.Set("User-Agent", d.userAgent)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return 0, errors.Wrap(err, "download "+rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errors.NewDownloadError(rawURL, resp.StatusCode, resp.Status)
	}

	var body io.Reader = resp.Body
	if d.progressOut != nil {
		name := DeriveFilename(rawURL)
		if name == "" {
			name = "download"
		}
		wrapped, stop := progress.Reader(resp.ContentLength, resp.Body, name, d.progressOut)
		defer stop()
		body = wrapped
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("download %s: after %d bytes: %w", rawURL, n, err)
	}

	d.logger.Debug().
		Int("status", resp.StatusCode).
		Str("size", common.GetSize(n)).
		Dur("elapsed", time.Since(start)).
		Msg("Download complete")
	return n, nil
}

// leveledLogger routes retryablehttp's logging through zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

var _ retryablehttp.LeveledLogger = leveledLogger{}
