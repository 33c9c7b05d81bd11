// Package config holds the daemon configuration and its YAML load/save
// behavior, including first-run config creation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	// Listen is the HTTP listen address for the API server.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`

	// Timezone is the IANA zone owners' days are reckoned in when a
	// request does not carry its own (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone"`

	// SolidifyCron schedules the rolling materialization pass.
	SolidifyCron string `yaml:"solidify_cron"`

	// HorizonDays is how far ahead each materialization pass reaches.
	HorizonDays int `yaml:"horizon_days"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Listen:       "127.0.0.1:7433",
		DBPath:       filepath.Join(homeDir, ".tempora", "tempora.db"),
		Timezone:     "UTC",
		SolidifyCron: "0 3 * * *",
		HorizonDays:  14,
	}
}

// Normalize fills in missing or zero values so partially-filled configs
// still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.SolidifyCron == "" {
		c.SolidifyCron = def.SolidifyCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DefaultPath returns the per-user config location.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".tempora", "config.yaml")
}

// Load reads the configuration from a YAML path. A missing file is a
// first run: the default config is written there and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the configuration to path with 0600 permissions, creating
// the parent directory as needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
