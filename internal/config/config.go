// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package config provides layered configuration for the Funnel binaries.
//
// Configuration is loaded in three layers with clear precedence:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration shared by ingestd and funnel-api.
type Config struct {
	Relay      RelayConfig      `koanf:"relay"`
	ClickHouse ClickHouseConfig `koanf:"clickhouse"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// RelayConfig configures the Nostr relay connection.
type RelayConfig struct {
	// URL is the relay websocket endpoint (ws:// or wss://).
	URL string `koanf:"url"`

	// ReconnectDelay is the pause before reconnecting after a stream ends.
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`
}

// ClickHouseConfig configures the ClickHouse HTTP connection.
type ClickHouseConfig struct {
	// URL is the ClickHouse endpoint, http:// or https://. Required;
	// loading fails when it is unset. The port defaults to 8123 for
	// http and 8443 for https.
	URL string `koanf:"url"`

	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
}

// IngestConfig configures batching and backfill behaviour.
type IngestConfig struct {
	// BatchSize is the event count that triggers a flush.
	BatchSize int `koanf:"batch_size"`

	// FlushInterval bounds how long a non-empty batch may wait. It also
	// paces the receive loop: each relay read times out after this long
	// so that timeout flushes are checked even on a quiet relay.
	FlushInterval time.Duration `koanf:"flush_interval"`

	// Backfill enables historical backfill mode instead of live
	// tailing. The BACKFILL environment variable enables it by
	// presence, regardless of its value.
	Backfill bool `koanf:"backfill"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// BindAddr is the listen address, e.g. "0.0.0.0:3000".
	BindAddr string `koanf:"bind_addr"`

	// APIToken, when non-empty, requires Bearer authentication on all
	// /api/ routes. Health and metrics are always unauthenticated.
	APIToken string `koanf:"api_token"`

	// RateLimit is the per-IP request limit per minute. 0 disables.
	RateLimit int `koanf:"rate_limit"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns a Config with all default values. These are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Relay: RelayConfig{
			URL:            "ws://localhost:7777",
			ReconnectDelay: 5 * time.Second,
		},
		ClickHouse: ClickHouseConfig{
			// URL has no default; the store endpoint must be configured
			// explicitly.
			Database: "nostr",
			User:     "default",
			Password: "",
		},
		Ingest: IngestConfig{
			BatchSize:     1000,
			FlushInterval: 100 * time.Millisecond,
			Backfill:      false,
		},
		Server: ServerConfig{
			BindAddr:  "0.0.0.0:3000",
			APIToken:  "",
			RateLimit: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values that would make the
// pipeline misbehave at runtime. Errors are aggregated so operators see
// every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Relay.URL == "" {
		errs = append(errs, "relay.url must not be empty")
	} else if !strings.HasPrefix(c.Relay.URL, "ws://") && !strings.HasPrefix(c.Relay.URL, "wss://") {
		errs = append(errs, fmt.Sprintf("relay.url must use ws:// or wss:// scheme, got %q", SafeURL(c.Relay.URL)))
	}

	if c.ClickHouse.URL == "" {
		errs = append(errs, "clickhouse.url is required (set CLICKHOUSE_URL)")
	} else if u, err := url.Parse(c.ClickHouse.URL); err != nil {
		errs = append(errs, fmt.Sprintf("clickhouse.url is not a valid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Sprintf("clickhouse.url must use http:// or https:// scheme, got %q", u.Scheme))
	}

	if c.ClickHouse.Database == "" {
		errs = append(errs, "clickhouse.database must not be empty")
	}

	if c.Ingest.BatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize))
	}
	if c.Ingest.FlushInterval <= 0 {
		errs = append(errs, fmt.Sprintf("ingest.flush_interval must be positive, got %v", c.Ingest.FlushInterval))
	}

	if c.Server.BindAddr == "" {
		errs = append(errs, "server.bind_addr must not be empty")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("server.rate_limit must not be negative, got %d", c.Server.RateLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SafeURL strips userinfo from a URL for log output. Credentials must
// never reach the logs, so callers log SafeURL(u) instead of u.
func SafeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	if u.User != nil {
		u.User = nil
	}
	return u.String()
}
