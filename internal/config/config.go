package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for restnotify
type Config struct {
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFile   string `json:"log_file" yaml:"log_file"`
	LogFormat string `json:"log_format" yaml:"log_format"` // "json" or "console"

	// Listen is the address of the HTTP trigger server in serve mode.
	Listen string `json:"listen" yaml:"listen"`

	// Metrics are mounted on the trigger server under /metrics and /status.
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`

	// InfluxDB (push)
	InfluxURL      string        `json:"influx_url" yaml:"influx_url"`
	InfluxToken    string        `json:"influx_token" yaml:"influx_token"`
	InfluxOrg      string        `json:"influx_org" yaml:"influx_org"`
	InfluxBucket   string        `json:"influx_bucket" yaml:"influx_bucket"`
	InfluxInterval time.Duration `json:"influx_interval" yaml:"influx_interval"`

	// ReloadDebounce delays a reload after the config file changes so that
	// editors writing in several steps trigger a single reload.
	ReloadDebounce time.Duration `json:"reload_debounce" yaml:"reload_debounce"`

	Notifiers []NotifierConfig `json:"notifiers" yaml:"notifiers"`
}

// DefaultConfig returns a sane default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "json",
		Listen:         ":8080",
		MetricsEnabled: false,
		InfluxInterval: 1 * time.Minute,
		ReloadDebounce: 250 * time.Millisecond,
	}
}

// Normalize expands presets and fills defaults on every notifier. Unnamed
// notifiers are named after their preset, or "rest".
func (c *Config) Normalize() error {
	var errs []error
	for i := range c.Notifiers {
		n, err := c.Notifiers[i].WithDefaults()
		if err != nil {
			errs = append(errs, fmt.Errorf("notifiers[%d]: %w", i, err))
			continue
		}
		c.Notifiers[i] = n
	}
	return errors.Join(errs...)
}

// Check returns the hard configuration errors: anything that would make a
// notifier unusable. Call Normalize first.
func (c *Config) Check() error {
	var errs []error
	seen := make(map[string]int, len(c.Notifiers))
	for i, n := range c.Notifiers {
		if j, dup := seen[n.Name]; dup {
			errs = append(errs, fmt.Errorf("notifiers[%d]: duplicate name %q (also notifiers[%d])", i, n.Name, j))
		}
		seen[n.Name] = i
		if err := n.Check(); err != nil {
			errs = append(errs, fmt.Errorf("notifiers[%d] %q: %w", i, n.Name, err))
		}
	}
	if c.InfluxURL != "" && c.InfluxInterval <= 0 {
		errs = append(errs, fmt.Errorf("influx_interval must be positive, got %v", c.InfluxInterval))
	}
	return errors.Join(errs...)
}

// Validate returns a list of non-fatal configuration warnings, such as
// unsupported data types or half-configured credentials.
func (c *Config) Validate() []string {
	var warnings []string
	if len(c.Notifiers) == 0 {
		warnings = append(warnings, "no notifiers configured")
	}
	for _, n := range c.Notifiers {
		for _, w := range n.Validate() {
			warnings = append(warnings, fmt.Sprintf("%s: %s", n.Name, w))
		}
	}
	if c.InfluxURL != "" && c.InfluxBucket == "" {
		warnings = append(warnings, "influx URL provided but bucket is missing")
	}
	return warnings
}

// Load parses YAML (or JSON) configuration over the defaults, then
// normalizes and checks it.
func Load(b []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromFile loads config from a YAML/JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
