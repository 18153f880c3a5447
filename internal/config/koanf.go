// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/funnel/config.yaml",
	"/etc/funnel/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (env wins), then
// validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// BACKFILL enables backfill mode by presence alone: any value,
	// including "0" or the empty string, turns it on.
	if _, ok := os.LookupEnv("BACKFILL"); ok {
		if err := k.Set("ingest.backfill", true); err != nil {
			return nil, fmt.Errorf("failed to set backfill mode: %w", err)
		}
	}

	// FLUSH_INTERVAL_MS is a bare millisecond count rather than a Go
	// duration string, so it is converted here instead of in the env layer.
	if raw := os.Getenv("FLUSH_INTERVAL_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("FLUSH_INTERVAL_MS is not an integer: %w", err)
		}
		if err := k.Set("ingest.flush_interval", time.Duration(ms)*time.Millisecond); err != nil {
			return nil, fmt.Errorf("failed to set flush interval: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, checking the
// CONFIG_PATH env var before the default search paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps flat environment variable names (lowercased) to
// nested koanf config paths. BACKFILL and FLUSH_INTERVAL_MS are
// special-cased in Load: the former is presence-triggered and the
// latter is a bare millisecond count.
//
// Examples:
//   - RELAY_URL -> relay.url
//   - CLICKHOUSE_PASSWORD -> clickhouse.password
var envMappings = map[string]string{
	"relay_url":       "relay.url",
	"reconnect_delay": "relay.reconnect_delay",

	"clickhouse_url":      "clickhouse.url",
	"clickhouse_database": "clickhouse.database",
	"clickhouse_user":     "clickhouse.user",
	"clickhouse_password": "clickhouse.password",

	"batch_size": "ingest.batch_size",

	"bind_addr":      "server.bind_addr",
	"api_token":      "server.api_token",
	"api_rate_limit": "server.rate_limit",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc resolves an environment variable name to its koanf
// config path. Unknown variables return "" and are ignored, so unrelated
// environment noise cannot leak into the config tree.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if path, ok := envMappings[key]; ok {
		return path
	}
	return ""
}
