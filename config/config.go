// Package config handles middleman configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level middleman configuration.
type Config struct {
	// Port for the HTTP session server.
	Port int `yaml:"port"`

	// PatternsDir holds the template library.
	PatternsDir string `yaml:"patterns_dir"`

	// DenylistPath points to the request denylist file.
	DenylistPath string `yaml:"denylist_path"`

	// JournalPath is the SQLite automation journal. Empty disables it.
	JournalPath string `yaml:"journal_path"`

	// Tick is the polling interval; MaxTicks caps iterations per run.
	Tick     time.Duration `yaml:"tick"`
	MaxTicks int           `yaml:"max_ticks"`

	// SessionTTL evicts idle HTTP sessions.
	SessionTTL time.Duration `yaml:"session_ttl"`

	Browser BrowserConfig `yaml:"browser"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote      string        `yaml:"remote"`
	Headless    *bool         `yaml:"headless"`
	ProfileRoot string        `yaml:"profile_root"`
	BlockTypes  []string      `yaml:"block_types"`
	NavTimeout  time.Duration `yaml:"nav_timeout"`
}

// LoadFile reads a YAML configuration file. A missing file yields the
// defaults: the tool has to work out of the box.
func LoadFile(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// HeadlessOrDefault resolves the headless tri-state: unset means true.
func (b *BrowserConfig) HeadlessOrDefault() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 3000
	}
	if c.PatternsDir == "" {
		c.PatternsDir = "patterns"
	}
	if c.DenylistPath == "" {
		c.DenylistPath = "denylist.txt"
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.MaxTicks <= 0 {
		c.MaxTicks = 15
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 10 * time.Minute
	}
	if c.Browser.ProfileRoot == "" {
		c.Browser.ProfileRoot = "user-data-dir"
	}
	if len(c.Browser.BlockTypes) == 0 {
		c.Browser.BlockTypes = []string{"media", "font"}
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
}
