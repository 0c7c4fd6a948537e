package config

import "time"

// Backend names accepted by --backend.
const (
	BackendAuto   = "auto"
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// GlobalFlags contains the flags shared by every command
type GlobalFlags struct {
	ConfigPath string
	Format     string
	LogLevel   string
	LogJSON    bool
	NoColor    bool
	NoProgress bool

	Tracking TrackingConfig
	Download DownloadConfig
}

// TrackingConfig selects and configures the tracking backend
type TrackingConfig struct {
	Backend    string
	APIBaseURL string
	APIKey     string
	Entity     string
	Project    string
	StoreDir   string
	// Retries applies to reads and run status updates against the remote
	// backend. Calls that create runs or artifact versions are sent once.
	Retries      int
	Timeout      time.Duration
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// DownloadConfig holds settings for fetching the source file
type DownloadConfig struct {
	Retries      int
	Timeout      time.Duration
	TempDir      string
	UserAgent    string
	AllowedHosts []string
}

// Defaults returns the flag values used when neither a flag, an environment
// variable nor the config file sets them.
func Defaults() GlobalFlags {
	return GlobalFlags{
		Format:   FormatTable,
		LogLevel: "info",
		Tracking: TrackingConfig{
			Backend:      BackendAuto,
			Project:      "uncategorized",
			Retries:      3,
			Timeout:      30 * time.Second,
			WaitTimeout:  10 * time.Minute,
			PollInterval: 2 * time.Second,
		},
		Download: DownloadConfig{
			Timeout: 30 * time.Minute,
		},
	}
}

// Global is the shared instance of GlobalFlags
var Global = Defaults()
