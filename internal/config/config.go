// Package config holds the tool configuration: defaults, optional YAML file,
// environment overrides, validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse naturally.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds all tunables for the workflow server and the headless run
// command.
type Config struct {
	// BackendURL is the base URL of the PhotoGen backend that performs
	// lookup, image search and generation.
	BackendURL string `yaml:"backend_url"`
	// ListenPort is the web server port.
	ListenPort string `yaml:"listen_port"`
	// HTTPTimeout bounds the lookup and image-search backend calls.
	HTTPTimeout Duration `yaml:"http_timeout"`
	// GenerationTimeout bounds each per-product generation call. These run
	// much longer than lookups, so they get their own budget.
	GenerationTimeout Duration `yaml:"generation_timeout"`
	// SeedSelection is how many load-time sources are pre-selected per
	// product.
	SeedSelection int `yaml:"seed_selection"`
	// ProxyCacheSize is the number of proxied candidate images kept in
	// memory.
	ProxyCacheSize int `yaml:"proxy_cache_size"`
	Verbose        bool `yaml:"verbose"`
}

// Default returns the defaults used when no file or environment overrides
// are present.
func Default() *Config {
	return &Config{
		BackendURL:        "http://localhost:8000",
		ListenPort:        "8888",
		HTTPTimeout:       Duration(30 * time.Second),
		GenerationTimeout: Duration(120 * time.Second),
		SeedSelection:     5,
		ProxyCacheSize:    128,
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty or missing), then PHOTOGEN_* environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PHOTOGEN_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv("PHOTOGEN_PORT"); v != "" {
		c.ListenPort = v
	}
	if v := os.Getenv("PHOTOGEN_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HTTPTimeout = Duration(d)
		}
	}
	if v := os.Getenv("PHOTOGEN_GENERATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.GenerationTimeout = Duration(d)
		}
	}
	if v := os.Getenv("PHOTOGEN_SEED_SELECTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SeedSelection = n
		}
	}
	if v := os.Getenv("PHOTOGEN_PROXY_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ProxyCacheSize = n
		}
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend URL cannot be empty")
	}
	parsed, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("backend URL must include a host")
	}
	if c.ListenPort == "" {
		return fmt.Errorf("listen port cannot be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.GenerationTimeout < 0 {
		return fmt.Errorf("generation timeout cannot be negative")
	}
	if c.SeedSelection <= 0 {
		return fmt.Errorf("seed selection must be positive")
	}
	if c.ProxyCacheSize <= 0 {
		return fmt.Errorf("proxy cache size must be positive")
	}
	return nil
}
