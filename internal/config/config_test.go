package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harness/fetch-artifact/config"
	"github.com/harness/fetch-artifact/util/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func noneChanged(string) bool { return false }

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("TEST_TRACKING_KEY", "s3cret")
	path := writeConfig(t, "config.yaml", `
format: json
logLevel: debug
noProgress: true
tracking:
  backend: remote
  apiUrl: https://tracker.example.com
  apiKey: ${TEST_TRACKING_KEY}
  entity: vision
  project: mnist
  retries: 5
  waitTimeout: 90s
download:
  retries: 2
  timeout: 5m
  allowedHosts:
    - "*.example.org"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Tracking.APIKey)
	require.NotNil(t, cfg.Download.Retries)
	assert.Equal(t, 2, *cfg.Download.Retries)

	g := config.Defaults()
	Apply(cfg, &g, noneChanged)

	assert.Equal(t, config.FormatJSON, g.Format)
	assert.Equal(t, "debug", g.LogLevel)
	assert.True(t, g.NoProgress)
	assert.False(t, g.LogJSON)
	assert.Equal(t, config.BackendRemote, g.Tracking.Backend)
	assert.Equal(t, "https://tracker.example.com", g.Tracking.APIBaseURL)
	assert.Equal(t, "vision", g.Tracking.Entity)
	assert.Equal(t, "mnist", g.Tracking.Project)
	assert.Equal(t, 5, g.Tracking.Retries)
	assert.Equal(t, 90*time.Second, g.Tracking.WaitTimeout)
	assert.Equal(t, 2*time.Second, g.Tracking.PollInterval)
	assert.Equal(t, 2, g.Download.Retries)
	assert.Equal(t, 5*time.Minute, g.Download.Timeout)
	assert.Equal(t, []string{"*.example.org"}, g.Download.AllowedHosts)
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
format = "table"
logJson = true

[tracking]
backend = "local"
storeDir = "/var/lib/artifacts"
pollInterval = "500ms"

[download]
retries = 0
userAgent = "pipeline/1.0"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	g := config.Defaults()
	g.Download.Retries = 4
	Apply(cfg, &g, noneChanged)

	assert.True(t, g.LogJSON)
	assert.Equal(t, config.BackendLocal, g.Tracking.Backend)
	assert.Equal(t, "/var/lib/artifacts", g.Tracking.StoreDir)
	assert.Equal(t, 500*time.Millisecond, g.Tracking.PollInterval)
	assert.Equal(t, 0, g.Download.Retries, "explicit zero in the file must override")
	assert.Equal(t, "pipeline/1.0", g.Download.UserAgent)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"bad extension", "config.json", `{}`, "unsupported config file extension"},
		{"bad yaml", "c.yaml", "tracking: [", "error parsing config file"},
		{"bad toml", "c.toml", "tracking = ", "error parsing config file"},
		{"bad format", "c.yaml", "format: xml", "invalid format"},
		{"bad backend", "c.yaml", "tracking:\n  backend: s3", "invalid backend"},
		{"bad duration", "c.yaml", "tracking:\n  waitTimeout: soon", "tracking.waitTimeout"},
		{"negative duration", "c.yaml", "download:\n  timeout: -1s", "must not be negative"},
		{"negative retries", "c.yaml", "download:\n  retries: -1", "download.retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApply_FlagsWin(t *testing.T) {
	cfg := &Config{Format: "json", Tracking: TrackingConfig{Project: "from-file", Entity: "file-entity"}}
	g := config.Defaults()
	g.Tracking.Project = "from-flag"

	Apply(cfg, &g, func(flag string) bool { return flag == "project" })
	assert.Equal(t, "from-flag", g.Tracking.Project)
	assert.Equal(t, "file-entity", g.Tracking.Entity)
	assert.Equal(t, config.FormatJSON, g.Format)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAPIURL:  "https://env.example.com",
		EnvAPIKey:  "env-key",
		EnvProject: "env-project",
	}
	g := config.Defaults()
	g.Tracking.Project = "from-flag"
	g.Tracking.APIKey = "from-file"

	ApplyEnv(&g, func(flag string) bool { return flag == "project" }, func(k string) string { return env[k] })
	assert.Equal(t, "https://env.example.com", g.Tracking.APIBaseURL)
	assert.Equal(t, "env-key", g.Tracking.APIKey)
	assert.Equal(t, "from-flag", g.Tracking.Project)
	assert.Equal(t, config.BackendAuto, g.Tracking.Backend)
}

func TestResolve(t *testing.T) {
	t.Run("auto picks local without api url", func(t *testing.T) {
		g := config.Defaults()
		require.NoError(t, Resolve(&g, "/home/me"))
		assert.Equal(t, config.BackendLocal, g.Tracking.Backend)
		assert.Equal(t, filepath.Join("/home/me", ".fetch-artifact", "artifacts"), g.Tracking.StoreDir)
	})

	t.Run("auto picks remote with api url", func(t *testing.T) {
		g := config.Defaults()
		g.Tracking.APIBaseURL = "https://tracker.example.com"
		g.Tracking.Entity = "vision"
		require.NoError(t, Resolve(&g, ""))
		assert.Equal(t, config.BackendRemote, g.Tracking.Backend)
		assert.Empty(t, g.Tracking.StoreDir)
	})

	t.Run("explicit store dir kept", func(t *testing.T) {
		g := config.Defaults()
		g.Tracking.StoreDir = "/data"
		require.NoError(t, Resolve(&g, "/home/me"))
		assert.Equal(t, "/data", g.Tracking.StoreDir)
	})

	failures := []struct {
		name   string
		mutate func(*config.GlobalFlags)
		field  string
	}{
		{"remote without url", func(g *config.GlobalFlags) { g.Tracking.Backend = config.BackendRemote }, "api-url"},
		{"remote without entity", func(g *config.GlobalFlags) {
			g.Tracking.Backend = config.BackendRemote
			g.Tracking.APIBaseURL = "https://x"
		}, "entity"},
		{"bad format", func(g *config.GlobalFlags) { g.Format = "yaml" }, "format"},
		{"bad backend", func(g *config.GlobalFlags) { g.Tracking.Backend = "gcs" }, "backend"},
		{"negative retries", func(g *config.GlobalFlags) { g.Download.Retries = -2 }, "download-retries"},
		{"no home dir", func(g *config.GlobalFlags) {}, "store-dir"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			g := config.Defaults()
			tt.mutate(&g)
			err := Resolve(&g, "")
			var verr *errors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
