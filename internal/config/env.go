package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported:
// - RESTNOTIFY_LOG_LEVEL (string, "debug", "info", "warn", "error")
// - RESTNOTIFY_LOG_FILE (path)
// - RESTNOTIFY_LOG_FORMAT (string, "json" or "console")
// - RESTNOTIFY_LISTEN (address, e.g. ":8080")
// - RESTNOTIFY_METRICS_ENABLED (bool, "true"/"false")
// - RESTNOTIFY_INFLUX_URL (string, e.g. http://localhost:8086)
// - RESTNOTIFY_INFLUX_TOKEN (string)
// - RESTNOTIFY_INFLUX_ORG (string)
// - RESTNOTIFY_INFLUX_BUCKET (string)
// - RESTNOTIFY_INFLUX_INTERVAL (duration, e.g. "1m")
// - RESTNOTIFY_RELOAD_DEBOUNCE (duration, e.g. "500ms")
func ApplyEnvOverrides(cfg *Config) error {
	applyLoggingEnv(cfg)

	if v := os.Getenv("RESTNOTIFY_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if err := setBoolEnv("RESTNOTIFY_METRICS_ENABLED", func(b bool) { cfg.MetricsEnabled = b }); err != nil {
		return err
	}
	if err := applyInfluxEnv(cfg); err != nil {
		return err
	}
	return setDurationEnv("RESTNOTIFY_RELOAD_DEBOUNCE", func(d time.Duration) { cfg.ReloadDebounce = d })
}

func applyLoggingEnv(cfg *Config) {
	if v := os.Getenv("RESTNOTIFY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RESTNOTIFY_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("RESTNOTIFY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

// applyInfluxEnv consolidates Influx-related env parsing
func applyInfluxEnv(cfg *Config) error {
	if v := os.Getenv("RESTNOTIFY_INFLUX_URL"); v != "" {
		cfg.InfluxURL = v
	}
	if v := os.Getenv("RESTNOTIFY_INFLUX_TOKEN"); v != "" {
		cfg.InfluxToken = v
	}
	if v := os.Getenv("RESTNOTIFY_INFLUX_ORG"); v != "" {
		cfg.InfluxOrg = v
	}
	if v := os.Getenv("RESTNOTIFY_INFLUX_BUCKET"); v != "" {
		cfg.InfluxBucket = v
	}
	return setDurationEnv("RESTNOTIFY_INFLUX_INTERVAL", func(d time.Duration) { cfg.InfluxInterval = d })
}

// setBoolEnv is a small helper to parse boolean environment variables
func setBoolEnv(env string, setter func(bool)) error {
	if v := os.Getenv(env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(b)
	}
	return nil
}

func setDurationEnv(env string, setter func(time.Duration)) error {
	if v := os.Getenv(env); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(d)
	}
	return nil
}
