package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DukeRupert/ohscentric/internal/entitlement"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the assistant's settings, read from OHSCENTRIC_* variables.
type Config struct {
	APIURL          string        `envconfig:"API_URL" default:"http://localhost:8080"`
	Mode            string        `envconfig:"MODE" default:"backend"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"60s"`
	RefreshTimeout  time.Duration `envconfig:"REFRESH_TIMEOUT" default:"5s"`
	StateDir        string        `envconfig:"STATE_DIR"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"warn"`

	// Simulated mode answers locally; the API never sees its questions.
	AIProvider      string `envconfig:"AI_PROVIDER" default:"mock"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL"`
}

// LoadConfig reads the configuration from the environment. StateDir
// defaults to an ohscentric directory under the user config dir.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ohscentric", &cfg); err != nil {
		return nil, err
	}
	if cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir: %w", err)
		}
		cfg.StateDir = filepath.Join(dir, "ohscentric")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch entitlement.Mode(c.Mode) {
	case entitlement.ModeBackend, entitlement.ModeSimulated:
	default:
		return fmt.Errorf("OHSCENTRIC_MODE must be %q or %q, got %q", entitlement.ModeBackend, entitlement.ModeSimulated, c.Mode)
	}
	if c.APIURL == "" {
		return fmt.Errorf("OHSCENTRIC_API_URL is required")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("OHSCENTRIC_REFRESH_INTERVAL must be positive")
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("OHSCENTRIC_REFRESH_TIMEOUT must be positive")
	}
	switch c.AIProvider {
	case "mock":
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("OHSCENTRIC_ANTHROPIC_API_KEY is required when OHSCENTRIC_AI_PROVIDER is anthropic")
		}
	default:
		return fmt.Errorf("OHSCENTRIC_AI_PROVIDER must be %q or %q, got %q", "mock", "anthropic", c.AIProvider)
	}
	return nil
}

// SourceConfig returns the entitlement source settings.
func (c *Config) SourceConfig() entitlement.Config {
	return entitlement.Config{
		Mode:     entitlement.Mode(c.Mode),
		BaseURL:  c.APIURL,
		StateDir: c.StateDir,
	}
}
