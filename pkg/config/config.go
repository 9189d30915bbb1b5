package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = ".amalgam.yaml"

// DefaultBanner is the license banner written above the merged header.
const DefaultBanner = `/**
 * cppcmb.hpp
 *
 * Copyright (c) 2018-2019 Peter Lenkefi
 * Distributed under the MIT License.
 *
 * A simple to use C++17 parser combinator library.
 * Repository and usage: https://github.com/LPeter1997/CppCmb
 */`

// Config holds all amalgam settings.
type Config struct {
	GuardPrefix string `yaml:"guard_prefix"` // Include guard prefix shared by every header.
	SourceDir   string `yaml:"source_dir"`   // Directory local includes are resolved against.
	TopInclude  string `yaml:"top_include"`  // Root header, relative to SourceDir.
	Target      string `yaml:"target"`       // Path of the merged header.
	Tree        string `yaml:"tree"`         // Optional path of the include tree report.
	Banner      string `yaml:"banner"`

	Logging LoggingConfig `yaml:"logging"`
	Watch   WatchConfig   `yaml:"watch"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string   `yaml:"debounce"` // Quiet period before a rebuild, e.g. "300ms".
	Ignore   []string `yaml:"ignore"`   // gitignore-style patterns relative to SourceDir.
}

// DefaultConfig returns the settings used when no configuration file exists.
func DefaultConfig() *Config {
	return &Config{
		GuardPrefix: "CPPCMB",
		SourceDir:   "source",
		TopInclude:  "cppcmb.hpp",
		Target:      "cppcmb2.hpp",
		Banner:      DefaultBanner,
		Watch: WatchConfig{
			Debounce: "300ms",
			Ignore:   []string{"*~", "*.swp", ".#*"},
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
// A missing file yields the defaults.
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

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks that the settings needed for a merge are present.
func (c *Config) Validate() error {
	var errs []error
	if c.SourceDir == "" {
		errs = append(errs, errors.New("source_dir is required"))
	}
	if c.TopInclude == "" {
		errs = append(errs, errors.New("top_include is required"))
	}
	if c.Target == "" {
		errs = append(errs, errors.New("target is required"))
	}
	if _, err := c.DebounceDuration(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DebounceDuration parses Watch.Debounce. An empty value means no debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Watch.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid watch.debounce %q: %w", c.Watch.Debounce, err)
	}
	return d, nil
}

// applyEnvOverrides applies AMALGAM_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AMALGAM_GUARD_PREFIX"); v != "" {
		c.GuardPrefix = v
	}
	if v := os.Getenv("AMALGAM_SOURCE_DIR"); v != "" {
		c.SourceDir = v
	}
	if v := os.Getenv("AMALGAM_TOP_INCLUDE"); v != "" {
		c.TopInclude = v
	}
	if v := os.Getenv("AMALGAM_TARGET"); v != "" {
		c.Target = v
	}
	if v := os.Getenv("AMALGAM_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Logging.Debug = debug
		}
	}
}
