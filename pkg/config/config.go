package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/driftmail/driftmail/pkg/mailbox"
)

// Defaults for the service configuration.
const (
	DefaultAddr            = ":3000"
	DefaultBrowserTimeout  = 30 * time.Second
	DefaultMaxSessions     = 10
	DefaultCleanupInterval = 1 * time.Minute
	DefaultSessionLifetime = 10 * time.Minute
)

// Config holds the full service configuration. Values are resolved in three
// layers: built-in defaults, then an optional YAML file, then DRIFTMAIL_*
// environment variables.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr" envconfig:"DRIFTMAIL_ADDR"`

	// BrowserTimeout bounds every browser operation: startup, navigation,
	// extraction, and close.
	BrowserTimeout time.Duration `yaml:"browser_timeout" envconfig:"DRIFTMAIL_BROWSER_TIMEOUT"`

	// MaxSessions is the concurrent-session ceiling. Each session holds a
	// full browser process, so this is the primary backpressure knob.
	MaxSessions int `yaml:"max_sessions" envconfig:"DRIFTMAIL_MAX_SESSIONS"`

	// CleanupInterval is the reaper sweep period.
	CleanupInterval time.Duration `yaml:"cleanup_interval" envconfig:"DRIFTMAIL_CLEANUP_INTERVAL"`

	// SessionLifetime is the maximum session age before eviction.
	SessionLifetime time.Duration `yaml:"session_lifetime" envconfig:"DRIFTMAIL_SESSION_LIFETIME"`

	// Production runs browsers headless and lowers log verbosity.
	Production bool `yaml:"production" envconfig:"DRIFTMAIL_PRODUCTION"`

	// Provider selects and parameterizes the webmail site being scraped.
	// Nested fields resolve as DRIFTMAIL_PROVIDER_<FIELD> in the environment.
	Provider mailbox.Provider `yaml:"provider" envconfig:"DRIFTMAIL_PROVIDER"`
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Addr:            DefaultAddr,
		BrowserTimeout:  DefaultBrowserTimeout,
		MaxSessions:     DefaultMaxSessions,
		CleanupInterval: DefaultCleanupInterval,
		SessionLifetime: DefaultSessionLifetime,
		Provider:        mailbox.DefaultProvider(),
	}
}

// Load resolves the configuration. path may be empty, in which case only
// defaults and environment variables apply; a non-empty path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the session manager cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.BrowserTimeout <= 0 {
		return fmt.Errorf("browser_timeout must be positive, got %s", c.BrowserTimeout)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive, got %d", c.MaxSessions)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive, got %s", c.CleanupInterval)
	}
	if c.SessionLifetime <= 0 {
		return fmt.Errorf("session_lifetime must be positive, got %s", c.SessionLifetime)
	}
	if c.Provider.InboxURL == "" {
		return fmt.Errorf("provider inbox_url must not be empty")
	}
	return nil
}
