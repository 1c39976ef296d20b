// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the phishwatch client configuration.
type Config struct {
	Backend     BackendConfig     `toml:"backend"`
	Transcripts TranscriptsConfig `toml:"transcripts"`
	Relay       RelayConfig       `toml:"relay"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
}

// BackendConfig locates the simulation backend.
type BackendConfig struct {
	BaseURL  string `toml:"base_url"`
	TokenEnv string `toml:"token_env"` // Env var holding the bearer token, if the backend needs one
}

// TranscriptsConfig controls run recording.
type TranscriptsConfig struct {
	Dir string `toml:"dir"` // Directory for <run_id>.jsonl transcripts
}

// RelayConfig contains NATS republishing settings.
type RelayConfig struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`            // NATS server URL, nats://host:4222
	SubjectPrefix string `toml:"subject_prefix"` // Prefix for run subjects (default "phishwatch")
}

// CatalogConfig locates the scenario/persona catalog.
type CatalogConfig struct {
	Path string `toml:"path"` // YAML catalog file
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
	Insecure bool   `toml:"insecure"` // Disable TLS (default false)
}

// New creates a new config with defaults.
func New() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
		},
		Transcripts: TranscriptsConfig{
			Dir: filepath.Join(home, ".local", "phishwatch", "runs"),
		},
		Relay: RelayConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "phishwatch",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads phishwatch.toml from the current directory, falling
// back to defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, "phishwatch.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// GetToken returns the backend bearer token from the configured
// environment variable, or "" when no token is configured.
func (c *Config) GetToken() string {
	if c.Backend.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Backend.TokenEnv)
}
