// Package config holds vertable configuration: an optional YAML file with
// environment variable overrides for the values CI pipelines inject.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all vertable configuration.
type Config struct {
	// Confluence connection and page target
	Confluence ConfluenceConfig `yaml:"confluence"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ConfluenceConfig configures the Confluence REST endpoint and target page.
// Every field a pipeline needs can arrive via environment variable.
type ConfluenceConfig struct {
	BaseURL  string `yaml:"base_url" env:"CONFLUENCE_BASE_URL"`
	PageID   string `yaml:"page_id" env:"CONFLUENCE_PAGE_ID"`
	Username string `yaml:"username" env:"ATLASSIAN_USERNAME"`
	APIToken string `yaml:"api_token" env:"ATLASSIAN_API_TOKEN"`
	Timeout  string `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Confluence: ConfluenceConfig{
			Timeout: "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file, then applies environment
// variable overrides. A missing file is not an error; defaults plus the
// environment are enough for CI use.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetRequestTimeout returns the Confluence request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Confluence.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Confluence.BaseURL == "" {
		return fmt.Errorf("Confluence base URL not configured (set CONFLUENCE_BASE_URL or --base-url)")
	}
	if c.Confluence.PageID == "" {
		return fmt.Errorf("Confluence page ID not configured (set CONFLUENCE_PAGE_ID or --page-id)")
	}
	if c.Confluence.Username == "" || c.Confluence.APIToken == "" {
		return fmt.Errorf("Atlassian credentials not configured (set ATLASSIAN_USERNAME and ATLASSIAN_API_TOKEN)")
	}
	return nil
}
