// Package config handles reading and writing the connector configuration
// file (~/.connector/config.toml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds connector configuration settings.
type Config struct {
	DBPath        string `toml:"db_path,omitempty" json:"db_path,omitempty"`
	OracleURL     string `toml:"oracle_url,omitempty" json:"oracle_url,omitempty"`
	OracleAPIKey  string `toml:"oracle_api_key,omitempty" json:"oracle_api_key,omitempty"`
	PoolURL       string `toml:"pool_url,omitempty" json:"pool_url,omitempty"`
	PoolAPIKey    string `toml:"pool_api_key,omitempty" json:"pool_api_key,omitempty"`
	Telemetry     string `toml:"telemetry,omitempty" json:"telemetry,omitempty"`
	MaxIterations int    `toml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	DefaultDevice string `toml:"default_device,omitempty" json:"default_device,omitempty"`
	AutoConfirm   bool   `toml:"auto_confirm,omitempty" json:"auto_confirm,omitempty"`
}

// validKeys lists the allowed configuration keys.
var validKeys = map[string]bool{
	"db_path":        true,
	"oracle_url":     true,
	"oracle_api_key": true,
	"pool_url":       true,
	"pool_api_key":   true,
	"telemetry":      true,
	"max_iterations": true,
	"default_device": true,
	"auto_confirm":   true,
}

// ValidKeys returns the sorted list of valid configuration keys.
func ValidKeys() []string {
	return []string{
		"auto_confirm", "db_path", "default_device", "max_iterations",
		"oracle_api_key", "oracle_url", "pool_api_key", "pool_url", "telemetry",
	}
}

// Path returns the default config file path (~/.connector/config.toml).
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".connector", "config.toml")
	}
	return filepath.Join(home, ".connector", "config.toml")
}

// DefaultDBPath returns the default database location (~/.connector/connector.db).
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".connector", "connector.db")
	}
	return filepath.Join(home, ".connector", "connector.db")
}

// Load reads the config from the default path.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config from a specific path. Returns an empty Config if
// the file does not exist.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to the default path.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to a specific path, creating parent directories
// as needed.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Get returns the string value of a configuration key.
func (c *Config) Get(key string) (string, error) {
	if !validKeys[key] {
		return "", fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(ValidKeys(), ", "))
	}
	switch key {
	case "db_path":
		return c.DBPath, nil
	case "oracle_url":
		return c.OracleURL, nil
	case "oracle_api_key":
		return c.OracleAPIKey, nil
	case "pool_url":
		return c.PoolURL, nil
	case "pool_api_key":
		return c.PoolAPIKey, nil
	case "telemetry":
		return c.Telemetry, nil
	case "max_iterations":
		if c.MaxIterations == 0 {
			return "", nil
		}
		return strconv.Itoa(c.MaxIterations), nil
	case "default_device":
		return c.DefaultDevice, nil
	case "auto_confirm":
		return strconv.FormatBool(c.AutoConfirm), nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// Set assigns a value to a configuration key.
func (c *Config) Set(key, value string) error {
	if !validKeys[key] {
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(ValidKeys(), ", "))
	}
	switch key {
	case "db_path":
		c.DBPath = value
	case "oracle_url":
		c.OracleURL = value
	case "oracle_api_key":
		c.OracleAPIKey = value
	case "pool_url":
		c.PoolURL = value
	case "pool_api_key":
		c.PoolAPIKey = value
	case "telemetry":
		if value != "" && value != "true" && value != "false" && value != "off" {
			return fmt.Errorf("telemetry must be \"true\", \"false\", or \"off\", got %q", value)
		}
		c.Telemetry = value
	case "max_iterations":
		if value == "" {
			c.MaxIterations = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("max_iterations must be a positive integer, got %q", value)
		}
		c.MaxIterations = n
	case "default_device":
		c.DefaultDevice = value
	case "auto_confirm":
		if value == "" {
			c.AutoConfirm = false
			return nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("auto_confirm must be true or false, got %q", value)
		}
		c.AutoConfirm = b
	}
	return nil
}
