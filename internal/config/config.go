package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level ledgerflow.yaml configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver   string `yaml:"driver"` // "mongo" or "memory"
	URI      string `yaml:"uri,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SweepConfig controls the scheduled rule sweeper.
type SweepConfig struct {
	Interval    time.Duration `yaml:"interval"`
	RuleTimeout time.Duration `yaml:"rule_timeout"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Environment string `yaml:"environment"`
	Level       string `yaml:"level,omitempty"`
}

// Load reads a ledgerflow.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new deployment.
func Default() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Driver:   "mongo",
			URI:      "mongodb://localhost:27017",
			Database: "ledgerflow",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Environment: "development",
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = "mongo"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Sweep.Interval <= 0 {
		c.Sweep.Interval = time.Minute
	}
	if c.Sweep.RuleTimeout <= 0 {
		c.Sweep.RuleTimeout = 10 * time.Second
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "development"
	}
}
