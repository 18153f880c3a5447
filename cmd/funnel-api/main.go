// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package main is the entry point for the Funnel query API server.
//
// The server exposes read endpoints over the analytics views that the
// ingestion daemon populates: video listings, per-video engagement
// stats, hashtag and title search, and global counts. Prometheus
// metrics are served on /metrics and a liveness probe on /health.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (BIND_ADDR, CLICKHOUSE_URL, API_TOKEN, ...)
//   - Config file (funnel.yaml)
//   - Built-in defaults
//
// Setting API_TOKEN requires a bearer token on every /api route.
// Leaving it empty disables authentication.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM, draining
// in-flight requests before exiting.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/funnel-video/funnel/internal/api"
	"github.com/funnel-video/funnel/internal/clickhouse"
	"github.com/funnel-video/funnel/internal/config"
	"github.com/funnel-video/funnel/internal/logging"
	"github.com/funnel-video/funnel/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config errors use the default logger, config is not available yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("bind_addr", cfg.Server.BindAddr).
		Str("clickhouse_url", config.SafeURL(cfg.ClickHouse.URL)).
		Bool("auth_enabled", cfg.Server.APIToken != "").
		Int("rate_limit", cfg.Server.RateLimit).
		Msg("Starting Funnel API server")

	client, err := clickhouse.NewClient(clickhouse.Config{
		URL:      cfg.ClickHouse.URL,
		Database: cfg.ClickHouse.Database,
		User:     cfg.ClickHouse.User,
		Password: cfg.ClickHouse.Password,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create ClickHouse client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing ClickHouse client")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		logging.Fatal().Err(err).Msg("ClickHouse is unreachable")
	}
	if err := client.EnsureSchema(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to ensure schema")
	}

	if cfg.Server.APIToken == "" {
		logging.Warn().Msg("API_TOKEN not set, all endpoints are publicly accessible")
	}

	handler := api.NewHandler(client)
	router := api.NewRouter(handler, api.NewAuthConfig(cfg.Server.APIToken), cfg.Server.RateLimit)
	server := api.NewServer(cfg.Server.BindAddr, router)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(server)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", cfg.Server.BindAddr).Msg("Serving HTTP")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("API server stopped")
}
