// Package config provides configuration loading and management for grantdraft.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/nainya/grantdraft/pkg/storage"
)

// DefaultFile is the config file looked up when none is given
const DefaultFile = "grantdraft.yaml"

// Config represents the complete grantdraft configuration
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects where version history is kept
type StorageConfig struct {
	// Backend is one of json, journal, sqlite
	Backend string `yaml:"backend"`
	// Path is the history file (json), journal base path, or database file
	Path string `yaml:"path"`
}

// ServerConfig configures the gRPC and observability listeners
type ServerConfig struct {
	Port int `yaml:"port"`
	// MetricsPort serves /metrics, /health and pprof; 0 disables it
	MetricsPort int `yaml:"metrics_port"`
	// MaxMessageBytes bounds gRPC request and response size
	MaxMessageBytes int `yaml:"max_message_bytes"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: storage.KindJSON,
			Path:    "grantdraft_versions.json",
		},
		Server: ServerConfig{
			Port:            50051,
			MetricsPort:     9090,
			MaxMessageBytes: 16 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if !slices.Contains(storage.Kinds, c.Storage.Backend) {
		return fmt.Errorf("storage.backend must be one of %v, got %q", storage.Kinds, c.Storage.Backend)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 0 and 65535")
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.Port {
		return fmt.Errorf("server.metrics_port must differ from server.port")
	}
	if c.Server.MaxMessageBytes <= 0 {
		return fmt.Errorf("server.max_message_bytes must be positive")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file over the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads path if given, else DefaultFile if present, else the defaults
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return LoadFromFile(DefaultFile)
	}
	return DefaultConfig(), nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}

	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.MetricsPort != 0 {
		c.Server.MetricsPort = other.Server.MetricsPort
	}
	if other.Server.MaxMessageBytes != 0 {
		c.Server.MaxMessageBytes = other.Server.MaxMessageBytes
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Pretty {
		c.Log.Pretty = true
	}
}
