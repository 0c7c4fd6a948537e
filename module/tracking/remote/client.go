// Package remote implements tracking.Backend against a tracking server's
// REST API.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harness/fetch-artifact/module/tracking"
	"github.com/harness/fetch-artifact/util"
	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	apiPrefix       = "/api/v1"
	requestIDHeader = "X-Request-Id"
	digestHeader    = "Digest"
)

// Options configure a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Entity  string
	Project string
	Timeout time.Duration
	Retries int
	Debug   bool
	Logger  zerolog.Logger
}

// Client talks to the tracking server. Every path is scoped to one
// entity/project pair.
type Client struct {
	entity  string
	project string
	logger  zerolog.Logger
	// resty retries and serves the idempotent calls: reads and FinishRun.
	resty *resty.Client
	// once serves the calls that create state on the server. A retry after
	// the server already acted would create a second run or version.
	once *resty.Client
	// upload sends streamed bodies, which cannot be replayed, so it never retries.
	upload *resty.Client
}

// APIError is the error body returned by the tracking server.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tracking server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("tracking server returned %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match a 401 against errors.ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == errors.ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

type finishRunPayload struct {
	Status tracking.RunStatus `json:"status"`
}

// New returns a Client for opts.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.NewValidationError("api_url", "must not be empty")
	}
	if opts.Entity == "" {
		return nil, errors.NewValidationError("entity", "must not be empty")
	}
	if opts.Project == "" {
		return nil, errors.NewValidationError("project", "must not be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	base := util.GetBaseUrl(opts.BaseURL)
	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": "fetch-artifact",
	}
	if opts.APIKey != "" {
		headers["Authorization"] = "Bearer " + opts.APIKey
	}

	r := resty.New()
	r.SetBaseURL(base)
	r.SetTimeout(opts.Timeout)
	r.SetRetryCount(opts.Retries)
	r.SetRetryWaitTime(1 * time.Second)
	r.SetRetryMaxWaitTime(30 * time.Second)
	r.SetDebug(opts.Debug)
	r.SetHeaders(headers)
	r.AddRetryCondition(func(resp *resty.Response, err error) bool {
		return resp != nil && (resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError)
	})

	once := resty.New()
	once.SetBaseURL(base)
	once.SetTimeout(opts.Timeout)
	once.SetDebug(opts.Debug)
	once.SetHeaders(headers)

	up := resty.New()
	up.SetBaseURL(base)
	up.SetDebug(opts.Debug)
	up.SetHeaders(headers)

	return &Client{
		entity:  opts.Entity,
		project: opts.Project,
		logger:  opts.Logger,
		resty:   r,
		once:    once,
		upload:  up,
	}, nil
}

func (c *Client) path(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, url.PathEscape(c.entity), url.PathEscape(c.project))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return apiPrefix + "/" + strings.Join(escaped, "/")
}

func (c *Client) request(ctx context.Context, rc *resty.Client) (*resty.Request, *APIError) {
	errorResult := &APIError{}
	return rc.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, uuid.NewString()).
		SetError(errorResult), errorResult
}

func (c *Client) check(resp *resty.Response, errorResult *APIError, err error) error {
	if err != nil {
		return err
	}
	c.logger.Debug().
		Str("method", resp.Request.Method).
		Str("url", resp.Request.URL).
		Int("status", resp.StatusCode()).
		Dur("elapsed", resp.Time()).
		Msg("Tracking API call")
	if resp.IsError() {
		errorResult.StatusCode = resp.StatusCode()
		return errorResult
	}
	return nil
}

// CreateRun opens a run on the server.
func (c *Client) CreateRun(ctx context.Context, spec tracking.RunSpec) (*tracking.RunInfo, error) {
	result := &tracking.RunInfo{}
	req, errorResult := c.request(ctx, c.once)
	resp, err := req.
		SetResult(result).
		SetBody(spec).
		Post(c.path("runs"))
	if err := c.check(resp, errorResult, err); err != nil {
		return nil, err
	}
	return result, nil
}

// FinishRun records the final status of a run.
func (c *Client) FinishRun(ctx context.Context, runID string, status tracking.RunStatus) error {
	req, errorResult := c.request(ctx, c.resty)
	resp, err := req.
		SetBody(&finishRunPayload{Status: status}).
		Post(c.path("runs", runID, "finish"))
	return c.check(resp, errorResult, err)
}

// CreateArtifact registers a new artifact version.
func (c *Client) CreateArtifact(ctx context.Context, spec tracking.ArtifactSpec) (*tracking.ArtifactVersion, error) {
	result := &tracking.ArtifactVersion{}
	req, errorResult := c.request(ctx, c.once)
	resp, err := req.
		SetResult(result).
		SetBody(spec).
		Post(c.path("artifacts"))
	if err := c.check(resp, errorResult, err); err != nil {
		return nil, err
	}
	return result, nil
}

// UploadFile streams body as the contents of entry. The server verifies the
// Digest header against what it receives.
func (c *Client) UploadFile(ctx context.Context, artifactID string, entry tracking.ManifestEntry, body io.Reader) error {
	parts := append([]string{"artifacts", artifactID, "files"}, strings.Split(entry.Path, "/")...)
	req, errorResult := c.request(ctx, c.upload)
	resp, err := req.
		SetHeader("Content-Type", "application/octet-stream").
		SetHeader(digestHeader, entry.Digest.String()).
		SetBody(body).
		Put(c.path(parts...))
	return c.check(resp, errorResult, err)
}

// CommitArtifact asks the server to finalize a version.
func (c *Client) CommitArtifact(ctx context.Context, artifactID string) (*tracking.ArtifactVersion, error) {
	result := &tracking.ArtifactVersion{}
	req, errorResult := c.request(ctx, c.once)
	resp, err := req.
		SetResult(result).
		Post(c.path("artifacts", artifactID, "commit"))
	if err := c.check(resp, errorResult, err); err != nil {
		return nil, err
	}
	return result, nil
}

// GetArtifact fetches the current state of a version.
func (c *Client) GetArtifact(ctx context.Context, artifactID string) (*tracking.ArtifactVersion, error) {
	result := &tracking.ArtifactVersion{}
	req, errorResult := c.request(ctx, c.resty)
	resp, err := req.
		SetResult(result).
		Get(c.path("artifacts", artifactID))
	if err := c.check(resp, errorResult, err); err != nil {
		return nil, err
	}
	return result, nil
}

var _ tracking.Backend = (*Client)(nil)
