// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/crawlcoord/internal/crawlwindow"
	"github.com/JakeFAU/crawlcoord/internal/fanout"
	collyfetcher "github.com/JakeFAU/crawlcoord/internal/fetcher/colly"
	"github.com/JakeFAU/crawlcoord/internal/logging"
	"github.com/JakeFAU/crawlcoord/internal/policy/ratelimit"
	"github.com/JakeFAU/crawlcoord/internal/progress"
	"github.com/JakeFAU/crawlcoord/internal/source/jsonapi"
)

// EnvPrefix prefixes every environment override, e.g. CRAWLCOORD_SERVER_PORT.
const EnvPrefix = "CRAWLCOORD"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Auth      AuthConfig          `mapstructure:"auth"`
	Logging   logging.Config      `mapstructure:"logging"`
	HTTP      collyfetcher.Config `mapstructure:"http"`
	RateLimit ratelimit.Config    `mapstructure:"ratelimit"`
	Window    crawlwindow.Config  `mapstructure:"window"`
	Fanout    fanout.Config       `mapstructure:"fanout"`
	Progress  ProgressConfig      `mapstructure:"progress"`
	Sources   []jsonapi.Source    `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ProgressConfig tunes the diagnostics hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
}

// Hub converts the section into a progress.Config.
func (p ProgressConfig) Hub() progress.Config {
	return progress.Config{
		BufferSize:     p.BufferSize,
		MaxBatchEvents: p.MaxBatchEvents,
		MaxBatchWait:   p.MaxBatchWait,
		SinkTimeout:    p.SinkTimeout,
	}
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.run_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("http.user_agent", "crawlcoord/0.1")
	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("ratelimit.default_rps", 4.0)
	v.SetDefault("ratelimit.default_burst", 4)
	v.SetDefault("window.start_page", 1)
	v.SetDefault("window.window_size", 4)
	v.SetDefault("window.max_batches", 250)
	v.SetDefault("fanout.batch_size", 48)
	v.SetDefault("fanout.max_in_flight", 4)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait", 500*time.Millisecond)
	v.SetDefault("progress.sink_timeout", 5*time.Second)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Server.RunTimeout <= 0 {
		return errors.New("server.run_timeout must be > 0")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.Window.WindowSize <= 0 {
		return errors.New("window.window_size must be > 0")
	}
	if c.Window.MaxBatches <= 0 {
		return errors.New("window.max_batches must be > 0")
	}
	if c.Fanout.BatchSize <= 0 || c.Fanout.MaxInFlight <= 0 {
		return errors.New("fanout.batch_size and fanout.max_in_flight must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, src.Name)
		}
		seen[src.Name] = struct{}{}
	}
	return nil
}

// Source returns the source definition named name.
func (c Config) Source(name string) (jsonapi.Source, bool) {
	for _, src := range c.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return jsonapi.Source{}, false
}
