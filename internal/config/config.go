// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

// Package config loads server configuration from a YAML file and
// command-line flags. Flags win over the file, the file wins over defaults.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the top-level server configuration.
type Config struct {
	DatabaseURL string `koanf:"database_url"`
	BaseURL     string `koanf:"base_url"`
	MetricsAddr string `koanf:"metrics_addr"`

	Log  LogConfig  `koanf:"log"`
	Auth AuthConfig `koanf:"auth"`
}

// LogConfig controls log output.
type LogConfig struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`
	// Level is "debug", "info", "warn", or "error".
	Level string `koanf:"level"`
}

// AuthConfig holds token lifetimes and password hashing cost.
type AuthConfig struct {
	SessionTTL      time.Duration `koanf:"session_ttl"`
	VerificationTTL time.Duration `koanf:"verification_ttl"`
	ResetTTL        time.Duration `koanf:"reset_ttl"`

	Argon2 Argon2Config `koanf:"argon2"`
}

// Argon2Config is the argon2id work factor. Zero fields use the hasher's
// defaults.
type Argon2Config struct {
	Time    uint32 `koanf:"time"`
	Memory  uint32 `koanf:"memory"`
	Threads uint8  `koanf:"threads"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:     "http://localhost:3000",
		MetricsAddr: ":9090",
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Auth: AuthConfig{
			SessionTTL:      24 * time.Hour,
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
		},
	}
}

// Load reads configuration from an optional YAML file and an optional flag
// set, layered over the defaults. A missing explicit file is an error; an
// empty path skips the file layer.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").
			With("level", c.Log.Level).
			Errorf("log.level must be debug, info, warn, or error")
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.VerificationTTL <= 0 || c.Auth.ResetTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth TTLs must be positive")
	}
	return nil
}
