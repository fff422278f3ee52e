// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

// Package config loads service configuration from defaults, an optional YAML
// file, LUSSO_-prefixed environment variables, and command-line flags, in
// that order of precedence.
package config

import (
	"time"

	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default listen addresses. The port numbers are fixed by the wire contract
// with existing game clients and world servers.
const (
	DefaultLoginAddr   = ":21836"
	DefaultVerifyAddr  = ":21835"
	DefaultMetricsAddr = "127.0.0.1:9100"
)

// Config holds the full service configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Listen   ListenConfig   `koanf:"listen"`
	Session  SessionConfig  `koanf:"session"`
	TLS      TLSConfig      `koanf:"tls"`
	Log      LogConfig      `koanf:"log"`
}

// DatabaseConfig holds account store settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// ListenConfig holds the listen addresses for the three network surfaces.
type ListenConfig struct {
	Login   string `koanf:"login"`
	Verify  string `koanf:"verify"`
	Metrics string `koanf:"metrics"`
}

// SessionConfig holds session credential settings. A zero Lifetime disables
// expiry; credentials then stay valid until replaced by a later login.
type SessionConfig struct {
	Lifetime time.Duration `koanf:"lifetime"`
}

// TLSConfig holds optional TLS settings shared by the login and verification
// listeners.
type TLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	Cert    string `koanf:"cert"`
	Key     string `koanf:"key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"listen.login":     DefaultLoginAddr,
		"listen.verify":    DefaultVerifyAddr,
		"listen.metrics":   DefaultMetricsAddr,
		"session.lifetime": "24h",
		"tls.enabled":      false,
		"log.format":       "json",
	}
}

// Load builds the configuration. configFile may be empty; flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", configFile).Wrap(err)
		}
	}

	// LUSSO_DATABASE_URL -> database.url and so on. Every key is exactly two
	// segments, so the first underscore is the separator.
	if err := k.Load(env.Provider("LUSSO_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "LUSSO_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for fatal problems. It is called by Load;
// exposed for tests and for callers that build a Config by hand.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	if c.Session.Lifetime < 0 {
		return oops.Code("CONFIG_INVALID").
			With("lifetime", c.Session.Lifetime.String()).
			Errorf("session.lifetime must not be negative")
	}
	if c.TLS.Enabled && (c.TLS.Cert == "" || c.TLS.Key == "") {
		return oops.Code("CONFIG_INVALID").Errorf("tls.enabled requires tls.cert and tls.key")
	}
	return nil
}

// RegisterFlags adds the configuration flags to a flag set. Flag names mirror
// the config keys with dots, so posflag maps them back without aliases.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("database.url", "", "PostgreSQL connection URL")
	flags.String("listen.login", DefaultLoginAddr, "login protocol listen address")
	flags.String("listen.verify", DefaultVerifyAddr, "verification API listen address")
	flags.String("listen.metrics", DefaultMetricsAddr, "metrics and health listen address")
	flags.Duration("session.lifetime", 24*time.Hour, "session credential lifetime (0 disables expiry)")
	flags.Bool("tls.enabled", false, "serve login and verification over TLS")
	flags.String("tls.cert", "", "TLS certificate file (PEM)")
	flags.String("tls.key", "", "TLS private key file (PEM)")
	flags.String("log.format", "json", "log format (json or text)")
}
