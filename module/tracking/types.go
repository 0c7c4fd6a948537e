package tracking

import (
	"context"
	"io"
	"time"

	"github.com/opencontainers/go-digest"
)

// State is the lifecycle state of an artifact version on the backend.
type State string

const (
	StatePending   State = "PENDING"
	StateCommitted State = "COMMITTED"
	StateFailed    State = "FAILED"
)

// RunStatus is the terminal (or current) status of a run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// RunSpec is what a backend needs to open a run.
type RunSpec struct {
	JobType string         `json:"jobType" yaml:"jobType"`
	Name    string         `json:"name,omitempty" yaml:"name,omitempty"`
	Config  map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// RunInfo describes a run as recorded by the backend.
type RunInfo struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	JobType    string         `json:"jobType"`
	Status     RunStatus      `json:"status"`
	Config     map[string]any `json:"config,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

// ManifestEntry is one file carried by an artifact.
type ManifestEntry struct {
	Path   string        `json:"path"`
	Size   int64         `json:"size"`
	Digest digest.Digest `json:"digest"`
}

// ArtifactSpec is the request to create a new artifact version.
type ArtifactSpec struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	RunID       string          `json:"runId"`
	Digest      digest.Digest   `json:"digest"`
	Entries     []ManifestEntry `json:"entries"`
}

// ArtifactVersion is a versioned artifact as stored by the backend.
type ArtifactVersion struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	RunID       string          `json:"runId"`
	Digest      digest.Digest   `json:"digest"`
	State       State           `json:"state"`
	Entries     []ManifestEntry `json:"entries"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// QualifiedName returns "name:version", the usual way to refer to a version.
func (v *ArtifactVersion) QualifiedName() string {
	return v.Name + ":" + v.Version
}

// Backend is the storage side of a tracking system. Implementations live in
// the remote and local subpackages.
type Backend interface {
	CreateRun(ctx context.Context, spec RunSpec) (*RunInfo, error)
	FinishRun(ctx context.Context, runID string, status RunStatus) error

	// CreateArtifact registers a new version. A backend may return an
	// already committed version whose digest matches spec.Digest instead.
	CreateArtifact(ctx context.Context, spec ArtifactSpec) (*ArtifactVersion, error)
	UploadFile(ctx context.Context, artifactID string, entry ManifestEntry, body io.Reader) error
	CommitArtifact(ctx context.Context, artifactID string) (*ArtifactVersion, error)
	GetArtifact(ctx context.Context, artifactID string) (*ArtifactVersion, error)
}
