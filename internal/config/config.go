// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Userforge Contributors

// Package config loads runtime settings for userforge.
//
// Precedence, lowest to highest: built-in defaults, an optional YAML
// config file, command-line flags. Secrets (database URL, SMTP password)
// come from the environment only and never appear in files or flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default values applied before any file or flag is read.
const (
	DefaultHTTPAddr    = "127.0.0.1:8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultHTTPTimeout = 10 * time.Second
	DefaultLogFormat   = "json"
	DefaultSMTPPort    = 587
)

// Environment variables consulted for secrets.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvSMTPPassword = "SMTP_PASSWORD"
)

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr    string        `koanf:"addr"`
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig configures the observability listener.
// An empty address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Format string `koanf:"format"`
}

// SMTPConfig configures outbound recovery mail. The password is read
// from the environment, never from file or flags.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	From     string `koanf:"from"`
	Password string `koanf:"-"`
}

// DatabaseConfig holds the Postgres connection string, sourced from the
// environment only.
type DatabaseConfig struct {
	URL string `koanf:"-"`
}

// Config is the full runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Database DatabaseConfig `koanf:"-"`
}

// RegisterFlags declares the config-overriding flags on the given set.
// Flag names map to config keys with dashes replaced by dots, so
// --smtp-host overrides smtp.host.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("http-addr", DefaultHTTPAddr, "API listen address")
	flags.Duration("http-timeout", DefaultHTTPTimeout, "per-request timeout")
	flags.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", DefaultLogFormat, "log format (json or text)")
	flags.String("smtp-host", "", "SMTP server host")
	flags.Int("smtp-port", DefaultSMTPPort, "SMTP server port")
	flags.String("smtp-username", "", "SMTP auth username")
	flags.String("smtp-from", "", "recovery mail from address")
}

// Load assembles the configuration. path names an optional YAML file;
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]any{
		"http.addr":    DefaultHTTPAddr,
		"http.timeout": DefaultHTTPTimeout,
		"metrics.addr": DefaultMetricsAddr,
		"log.format":   DefaultLogFormat,
		"smtp.port":    DefaultSMTPPort,
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			return strings.ReplaceAll(key, "-", "."), value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	cfg.Database.URL = os.Getenv(EnvDatabaseURL)
	cfg.SMTP.Password = os.Getenv(EnvSMTPPassword)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks constraints that hold regardless of source. Secrets
// are checked at startup, not here, so tooling can load partial configs.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.HTTP.Timeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("http.timeout must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be 'json' or 'text'")
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return oops.Code("CONFIG_INVALID").Errorf("smtp.from is required when smtp.host is set")
	}
	return nil
}
