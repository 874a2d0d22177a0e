package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a configuration file, applies defaults, and validates it.
// Files ending in .yaml or .yml are parsed as YAML documents; anything else
// is parsed in the native directive grammar. The loading sequence is:
//
//  1. Parse the file
//  2. Apply default values
//  3. Validate the final configuration
//
// Environment variables are not consulted; use LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg *Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	default:
		cfg, err = Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithEnvOverrides loads a configuration file and applies environment
// variable overrides of the form BASTIOND_FIELD (e.g. BASTIOND_CHROOT).
// Environment variables always take precedence over file settings, and the
// result is re-validated after they are applied.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("BASTIOND_CHROOT"); val != "" {
		cfg.Chroot = val
	}
	if val := os.Getenv("BASTIOND_USER"); val != "" {
		cfg.User = val
	}
	if val := os.Getenv("BASTIOND_GROUP"); val != "" {
		cfg.Group = val
	}

	if val := os.Getenv("BASTIOND_ACCESS_LOG_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.AccessLog.Enabled = b
		}
	}
	if val := os.Getenv("BASTIOND_ACCESS_LOG_BACKEND"); val != "" {
		cfg.AccessLog.Backend = val
	}
	if val := os.Getenv("BASTIOND_ACCESS_LOG_PATH"); val != "" {
		cfg.AccessLog.Path = val
	}

	if val := os.Getenv("BASTIOND_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("BASTIOND_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Metrics.ListenAddress = val
	}

	if val := os.Getenv("BASTIOND_TIMEOUT_READ_HEADER"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Timeouts.ReadHeader = d
		}
	}
	if val := os.Getenv("BASTIOND_TIMEOUT_READ"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Timeouts.Read = d
		}
	}
	if val := os.Getenv("BASTIOND_TIMEOUT_WRITE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Timeouts.Write = d
		}
	}
	if val := os.Getenv("BASTIOND_TIMEOUT_IDLE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Timeouts.Idle = d
		}
	}
	if val := os.Getenv("BASTIOND_TIMEOUT_SHUTDOWN"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Timeouts.Shutdown = d
		}
	}
}
