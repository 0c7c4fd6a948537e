package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harness/fetch-artifact/config"
	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted when the matching flag is not set.
const (
	EnvBackend  = "FETCH_ARTIFACT_BACKEND"
	EnvAPIURL   = "FETCH_ARTIFACT_API_URL"
	EnvAPIKey   = "FETCH_ARTIFACT_API_KEY"
	EnvEntity   = "FETCH_ARTIFACT_ENTITY"
	EnvProject  = "FETCH_ARTIFACT_PROJECT"
	EnvStoreDir = "FETCH_ARTIFACT_STORE_DIR"
)

// Config represents the top-level configuration file
type Config struct {
	Format     string         `yaml:"format" toml:"format"`
	LogLevel   string         `yaml:"logLevel" toml:"logLevel"`
	LogJSON    *bool          `yaml:"logJson" toml:"logJson"`
	NoColor    *bool          `yaml:"noColor" toml:"noColor"`
	NoProgress *bool          `yaml:"noProgress" toml:"noProgress"`
	Tracking   TrackingConfig `yaml:"tracking" toml:"tracking"`
	Download   DownloadConfig `yaml:"download" toml:"download"`
}

// TrackingConfig configures the tracking backend
type TrackingConfig struct {
	Backend      string `yaml:"backend" toml:"backend"`
	APIURL       string `yaml:"apiUrl" toml:"apiUrl"`
	APIKey       string `yaml:"apiKey" toml:"apiKey"`
	Entity       string `yaml:"entity" toml:"entity"`
	Project      string `yaml:"project" toml:"project"`
	StoreDir     string `yaml:"storeDir" toml:"storeDir"`
	Retries      *int   `yaml:"retries" toml:"retries"`
	Timeout      string `yaml:"timeout" toml:"timeout"`
	WaitTimeout  string `yaml:"waitTimeout" toml:"waitTimeout"`
	PollInterval string `yaml:"pollInterval" toml:"pollInterval"`
}

// DownloadConfig configures how the source file is fetched
type DownloadConfig struct {
	Retries      *int     `yaml:"retries" toml:"retries"`
	Timeout      string   `yaml:"timeout" toml:"timeout"`
	TempDir      string   `yaml:"tempDir" toml:"tempDir"`
	UserAgent    string   `yaml:"userAgent" toml:"userAgent"`
	AllowedHosts []string `yaml:"allowedHosts" toml:"allowedHosts"`
}

// LoadConfig loads the configuration from a YAML or TOML file, chosen by
// extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Expand environment variables in the file
	expanded := os.Expand(string(data), os.Getenv)

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	default:
		return nil, errors.NewValidationError("config", fmt.Sprintf("unsupported config file extension %q, expected .yaml, .yml or .toml", filepath.Ext(path)))
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateConfig performs basic validation on the configuration
func validateConfig(cfg *Config) error {
	if cfg.Format != "" {
		if err := validateFormat(cfg.Format); err != nil {
			return err
		}
	}
	if cfg.Tracking.Backend != "" {
		if err := validateBackend(cfg.Tracking.Backend); err != nil {
			return err
		}
	}
	if cfg.Tracking.Retries != nil && *cfg.Tracking.Retries < 0 {
		return errors.NewValidationError("tracking.retries", "must not be negative")
	}
	if cfg.Download.Retries != nil && *cfg.Download.Retries < 0 {
		return errors.NewValidationError("download.retries", "must not be negative")
	}

	durations := map[string]string{
		"tracking.timeout":      cfg.Tracking.Timeout,
		"tracking.waitTimeout":  cfg.Tracking.WaitTimeout,
		"tracking.pollInterval": cfg.Tracking.PollInterval,
		"download.timeout":      cfg.Download.Timeout,
	}
	for field, value := range durations {
		if _, err := parseDuration(field, value); err != nil {
			return err
		}
	}
	return nil
}

func validateFormat(format string) error {
	switch format {
	case config.FormatTable, config.FormatJSON:
		return nil
	}
	return errors.NewValidationError("format", fmt.Sprintf("invalid format %q, must be %q or %q", format, config.FormatTable, config.FormatJSON))
}

func validateBackend(backend string) error {
	switch backend {
	case config.BackendAuto, config.BackendRemote, config.BackendLocal:
		return nil
	}
	return errors.NewValidationError("backend", fmt.Sprintf("invalid backend %q, must be auto, remote or local", backend))
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.NewValidationError(field, err.Error())
	}
	if d < 0 {
		return 0, errors.NewValidationError(field, "must not be negative")
	}
	return d, nil
}

// Apply copies every value set in cfg into g, skipping those whose flag was
// given on the command line. changed reports whether a flag was set.
func Apply(cfg *Config, g *config.GlobalFlags, changed func(flag string) bool) {
	setString := func(flag, value string, dst *string) {
		if value != "" && !changed(flag) {
			*dst = value
		}
	}
	setBool := func(flag string, value *bool, dst *bool) {
		if value != nil && !changed(flag) {
			*dst = *value
		}
	}
	setInt := func(flag string, value *int, dst *int) {
		if value != nil && !changed(flag) {
			*dst = *value
		}
	}
	// durations were checked by validateConfig
	setDuration := func(flag, value string, dst *time.Duration) {
		if value != "" && !changed(flag) {
			*dst, _ = time.ParseDuration(value)
		}
	}

	setString("format", cfg.Format, &g.Format)
	setString("log-level", cfg.LogLevel, &g.LogLevel)
	setBool("log-json", cfg.LogJSON, &g.LogJSON)
	setBool("no-color", cfg.NoColor, &g.NoColor)
	setBool("no-progress", cfg.NoProgress, &g.NoProgress)

	t := cfg.Tracking
	setString("backend", t.Backend, &g.Tracking.Backend)
	setString("api-url", t.APIURL, &g.Tracking.APIBaseURL)
	setString("api-key", t.APIKey, &g.Tracking.APIKey)
	setString("entity", t.Entity, &g.Tracking.Entity)
	setString("project", t.Project, &g.Tracking.Project)
	setString("store-dir", t.StoreDir, &g.Tracking.StoreDir)
	setInt("tracking-retries", t.Retries, &g.Tracking.Retries)
	setDuration("tracking-timeout", t.Timeout, &g.Tracking.Timeout)
	setDuration("wait-timeout", t.WaitTimeout, &g.Tracking.WaitTimeout)
	setDuration("poll-interval", t.PollInterval, &g.Tracking.PollInterval)

	d := cfg.Download
	setInt("download-retries", d.Retries, &g.Download.Retries)
	setDuration("download-timeout", d.Timeout, &g.Download.Timeout)
	setString("temp-dir", d.TempDir, &g.Download.TempDir)
	setString("user-agent", d.UserAgent, &g.Download.UserAgent)
	if len(d.AllowedHosts) > 0 && !changed("allowed-host") {
		g.Download.AllowedHosts = d.AllowedHosts
	}
}

// ApplyEnv copies the FETCH_ARTIFACT_* variables into g, skipping flags
// given on the command line. Environment values win over the config file.
func ApplyEnv(g *config.GlobalFlags, changed func(flag string) bool, getenv func(string) string) {
	vars := []struct {
		env, flag string
		dst       *string
	}{
		{EnvBackend, "backend", &g.Tracking.Backend},
		{EnvAPIURL, "api-url", &g.Tracking.APIBaseURL},
		{EnvAPIKey, "api-key", &g.Tracking.APIKey},
		{EnvEntity, "entity", &g.Tracking.Entity},
		{EnvProject, "project", &g.Tracking.Project},
		{EnvStoreDir, "store-dir", &g.Tracking.StoreDir},
	}
	for _, v := range vars {
		if value := getenv(v.env); value != "" && !changed(v.flag) {
			*v.dst = value
		}
	}
}

// Resolve fills derived defaults and validates the final flag set.
// homeDir is used for the default local store location.
func Resolve(g *config.GlobalFlags, homeDir string) error {
	if err := validateFormat(g.Format); err != nil {
		return err
	}
	if err := validateBackend(g.Tracking.Backend); err != nil {
		return err
	}
	if g.Download.Retries < 0 {
		return errors.NewValidationError("download-retries", "must not be negative")
	}
	if g.Tracking.Retries < 0 {
		return errors.NewValidationError("tracking-retries", "must not be negative")
	}

	if g.Tracking.Backend == config.BackendAuto {
		if g.Tracking.APIBaseURL != "" {
			g.Tracking.Backend = config.BackendRemote
		} else {
			g.Tracking.Backend = config.BackendLocal
		}
	}

	switch g.Tracking.Backend {
	case config.BackendRemote:
		if g.Tracking.APIBaseURL == "" {
			return errors.NewValidationError("api-url", "required for the remote backend (or set "+EnvAPIURL+")")
		}
		if g.Tracking.Entity == "" {
			return errors.NewValidationError("entity", "required for the remote backend (or set "+EnvEntity+")")
		}
	case config.BackendLocal:
		if g.Tracking.StoreDir == "" {
			if homeDir == "" {
				return errors.NewValidationError("store-dir", "required when the home directory is unknown")
			}
			g.Tracking.StoreDir = filepath.Join(homeDir, ".fetch-artifact", "artifacts")
		}
	}
	return nil
}
