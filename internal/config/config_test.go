package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/crawlcoord/internal/policy/ratelimit"
	"github.com/JakeFAU/crawlcoord/internal/source/jsonapi"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoadWithFileOverrides reads every section from YAML.
func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9090
  run_timeout: 2m
auth:
  enabled: true
  api_key: secret
logging:
  development: false
  level: debug
http:
  user_agent: real-agent
  timeout: 45s
ratelimit:
  default_rps: 2
  default_burst: 1
  hosts:
    - host: api.example.com
      rps: 10
      burst: 5
window:
  window_size: 6
  page_size: 30
fanout:
  batch_size: 24
progress:
  max_batch_wait: 250ms
sources:
  - name: works
    list_url: https://api.example.com/works?page={page}
    items_path: data.items
    id_path: id
    total_path: data.total
    page_size: 30
    headers:
      Accept: application/json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 2*time.Minute, cfg.Server.RunTimeout)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "real-agent", cfg.HTTP.UserAgent)
	require.Equal(t, 45*time.Second, cfg.HTTP.Timeout)
	require.InDelta(t, 2.0, cfg.RateLimit.DefaultRPS, 0)
	require.Equal(t, []ratelimit.HostRate{{Host: "api.example.com", RPS: 10, Burst: 5}}, cfg.RateLimit.Hosts)
	require.Equal(t, 6, cfg.Window.WindowSize)
	require.Equal(t, 30, cfg.Window.PageSize)
	require.Equal(t, 250, cfg.Window.MaxBatches)
	require.Equal(t, 24, cfg.Fanout.BatchSize)
	require.Equal(t, 4, cfg.Fanout.MaxInFlight)
	require.Equal(t, 250*time.Millisecond, cfg.Progress.Hub().MaxBatchWait)

	src, ok := cfg.Source("works")
	require.True(t, ok)
	require.Equal(t, "data.items", src.ItemsPath)
	require.Equal(t, 30, src.PageSize)
	require.Len(t, src.Headers, 1)
	for k, v := range src.Headers {
		require.True(t, strings.EqualFold("Accept", k))
		require.Equal(t, "application/json", v)
	}
	_, ok = cfg.Source("missing")
	require.False(t, ok)
}

// TestLoadDefaults works without a file.
func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 1, cfg.Window.StartPage)
	require.Equal(t, 4, cfg.Window.WindowSize)
	require.Equal(t, 48, cfg.Fanout.BatchSize)
	require.Equal(t, 1024, cfg.Progress.BufferSize)
	require.Empty(t, cfg.Sources)
}

// TestLoadEnvOverride applies CRAWLCOORD_ variables over defaults.
func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CRAWLCOORD_SERVER_PORT", "7070")
	t.Setenv("CRAWLCOORD_FANOUT_BATCH_SIZE", "12")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 12, cfg.Fanout.BatchSize)
}

// TestLoadMissingFile reports unreadable files.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read config")
}

// TestConfigValidateErrors names the offending key.
func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)
	works := jsonapi.Source{Name: "works", ListURL: "https://x/?p={page}", ItemsPath: "items"}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid run timeout", func(c *Config) { c.Server.RunTimeout = 0 }, "server.run_timeout"},
		{"invalid timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"invalid window", func(c *Config) { c.Window.WindowSize = 0 }, "window.window_size"},
		{"invalid bound", func(c *Config) { c.Window.MaxBatches = -1 }, "window.max_batches"},
		{"invalid fanout", func(c *Config) { c.Fanout.MaxInFlight = 0 }, "fanout.batch_size"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"bad source", func(c *Config) { c.Sources = []jsonapi.Source{{Name: "x"}} }, "sources[0]"},
		{"duplicate source", func(c *Config) { c.Sources = []jsonapi.Source{works, works} }, "duplicate source name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
