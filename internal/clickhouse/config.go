// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package clickhouse

import (
	"fmt"
	"net"
	"net/url"
)

// Config describes a ClickHouse HTTP endpoint.
type Config struct {
	// URL is the base endpoint, e.g. "https://host:8443". The port
	// defaults to 8123 for http and 8443 for https.
	URL string

	Database string
	User     string
	Password string
}

// endpoint is the parsed form of Config.URL.
type endpoint struct {
	secure bool
	addr   string
}

// parseEndpoint extracts scheme, host and port from the configured URL,
// applying the protocol default port when none is given.
func parseEndpoint(rawURL string) (endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return endpoint{}, fmt.Errorf("invalid ClickHouse URL: %w", err)
	}

	var secure bool
	switch u.Scheme {
	case "http":
		secure = false
	case "https":
		secure = true
	default:
		return endpoint{}, fmt.Errorf("unsupported ClickHouse URL scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		if secure {
			port = "8443"
		} else {
			port = "8123"
		}
	}

	return endpoint{secure: secure, addr: net.JoinHostPort(host, port)}, nil
}
