package fetch

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/harness/fetch-artifact/module/tracking"
	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/opencontainers/go-digest"
)

// JobType is the job type of every run opened by the pipeline.
const JobType = "download_data"

// OriginalURLKey is the metadata key recording where the file came from.
const OriginalURLKey = "original_url"

// Request describes one download-and-register invocation.
type Request struct {
	SourceURL    string
	ArtifactName string
	ArtifactType string
	Description  string
	// Metadata is merged into the artifact metadata. It may not set
	// OriginalURLKey.
	Metadata map[string]any
}

// Validate reports every missing or malformed field. The description is free
// text and may be empty.
func (r Request) Validate() error {
	var errs []error
	required := []struct{ field, value string }{
		{"file_url", r.SourceURL},
		{"artifact_name", r.ArtifactName},
		{"artifact_type", r.ArtifactType},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, errors.NewValidationError(f.field, "is required"))
		}
	}

	if strings.TrimSpace(r.ArtifactName) != "" {
		if err := tracking.ValidateName(r.ArtifactName); err != nil {
			errs = append(errs, err)
		}
	}

	if r.SourceURL != "" {
		u, err := url.Parse(r.SourceURL)
		switch {
		case err != nil:
			errs = append(errs, errors.NewValidationError("file_url", err.Error()))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, errors.NewValidationError("file_url",
				fmt.Sprintf("unsupported scheme %q, expected http or https", u.Scheme)))
		case u.Host == "":
			errs = append(errs, errors.NewValidationError("file_url", "missing host"))
		}
	}

	if _, ok := r.Metadata[OriginalURLKey]; ok {
		errs = append(errs, errors.NewValidationError("metadata", OriginalURLKey+" is reserved"))
	}
	return errors.Join(errs...)
}

func (r Request) metadata() map[string]any {
	md := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		md[k] = v
	}
	md[OriginalURLKey] = r.SourceURL
	return md
}

// Result summarizes a successful registration.
type Result struct {
	Filename   string         `json:"filename"`
	Size       int64          `json:"size"`
	Digest     digest.Digest  `json:"digest"`
	RunID      string         `json:"runId"`
	ArtifactID string         `json:"artifactId"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Version    string         `json:"version"`
	State      tracking.State `json:"state"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Duration   time.Duration  `json:"durationNs"`
}
