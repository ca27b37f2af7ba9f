// Package config loads seqrule configuration from a YAML file with
// defaults and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = ".seqrule/config.yaml"

// Config holds all seqrule configuration.
type Config struct {
	// HTTP control surface
	Server ServerConfig `yaml:"server"`

	// Rule persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// Wall-clock budget for one POST /rules/test batch.
	TestTimeout string `yaml:"test_timeout"`
}

// StoreConfig configures rule persistence.
type StoreConfig struct {
	Backend      string `yaml:"backend"` // file, sqlite
	RulesDir     string `yaml:"rules_dir"`
	DatabasePath string `yaml:"database_path"`

	// Watch the rules directory and hot-reload changed rules.
	Watch bool `yaml:"watch"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			TestTimeout: "10s",
		},
		Store: StoreConfig{
			Backend:      "file",
			RulesDir:     "rules",
			DatabasePath: "data/seqrule.db",
			Watch:        true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration back to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("SEQRULE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if backend := os.Getenv("SEQRULE_STORE_BACKEND"); backend != "" {
		c.Store.Backend = backend
	}
	if dir := os.Getenv("SEQRULE_RULES_DIR"); dir != "" {
		c.Store.RulesDir = dir
	}
	if path := os.Getenv("SEQRULE_DB_PATH"); path != "" {
		c.Store.DatabasePath = path
	}
	if os.Getenv("SEQRULE_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	return nil
}

// GetTestTimeout returns the batch test timeout as a duration.
func (c *Config) GetTestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.TestTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
