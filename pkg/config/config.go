/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the MarineDB configuration
type Config struct {
	DataDir  string   `yaml:"data_dir"`
	Port     int      `yaml:"port"`
	Bind     string   `yaml:"bind"`
	Storage  Storage  `yaml:"storage"`
	Security Security `yaml:"security"`
	Logging  Logging  `yaml:"logging"`
	Service  Service  `yaml:"service"`
	Snapshot Snapshot `yaml:"snapshot"`
}

// Storage selects and tunes the backing pool
type Storage struct {
	Driver string `yaml:"driver"`
	// DSN is the sqlite file or postgres connection string.
	DSN string `yaml:"dsn,omitempty"`
	// FsyncInterval batches log pool fsyncs, e.g. "100ms". Empty syncs every write.
	FsyncInterval string `yaml:"fsync_interval,omitempty"`
	PageSize      int    `yaml:"page_size"`
}

// Security contains security-related configuration
type Security struct {
	// APIKey, when set, is required in the X-API-Key header of every request.
	APIKey string `yaml:"api_key,omitempty"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Service tunes record service behavior
type Service struct {
	AllowEmptyResults bool `yaml:"allow_empty_results"`
}

// Snapshot configures where exports go by default
type Snapshot struct {
	Location string `yaml:"location,omitempty"`
	S3       S3     `yaml:"s3"`
}

// S3 holds connection settings used for s3:// snapshot locations
type S3 struct {
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style"`
}

var drivers = []string{"log", "pebble", "sqlite", "postgres", "memory"}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Storage: Storage{
			Driver:   "log",
			PageSize: 64,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Storage.Driver != "" && !slices.Contains(drivers, c.Storage.Driver) {
		return fmt.Errorf("unknown storage driver %q (want one of %v)", c.Storage.Driver, drivers)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the postgres driver")
	}
	if c.Storage.PageSize < 0 {
		return fmt.Errorf("storage.page_size must not be negative")
	}
	if _, err := c.FsyncInterval(); err != nil {
		return err
	}
	return nil
}

// FsyncInterval parses Storage.FsyncInterval. Empty means zero.
func (c *Config) FsyncInterval() (time.Duration, error) {
	if c.Storage.FsyncInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Storage.FsyncInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid storage.fsync_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("storage.fsync_interval must not be negative")
	}
	return d, nil
}

// ApplyEnv overrides file values with MARINE_* environment variables
func (c *Config) ApplyEnv() {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"MARINE_DATA_DIR", &c.DataDir},
		{"MARINE_STORAGE_DRIVER", &c.Storage.Driver},
		{"MARINE_STORAGE_DSN", &c.Storage.DSN},
		{"MARINE_LOG_LEVEL", &c.Logging.Level},
		{"MARINE_API_KEY", &c.Security.APIKey},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			*o.dst = v
		}
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a default configuration with a freshly generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Security.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./marine.yaml"
	}

	// For Linux/macOS, use ~/.config/marinedb/config.yaml
	return filepath.Join(homeDir, ".config", "marinedb", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
