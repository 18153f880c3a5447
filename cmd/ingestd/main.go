// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package main is the entry point for the Funnel ingestion daemon.
//
// The daemon connects to a Nostr relay over websocket, subscribes to
// video events, and writes them to ClickHouse in batches. It runs in
// one of two modes:
//
//   - Live (default): tail the relay's event stream from a resume
//     point derived from the newest stored event, with a catch-up
//     buffer so events that arrived while the daemon was down are
//     re-fetched.
//   - Backfill (BACKFILL=1): page backwards through the relay's
//     history until the store is exhausted, then exit.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (RELAY_URL, CLICKHOUSE_URL, BATCH_SIZE, ...)
//   - Config file (funnel.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// The daemon shuts down gracefully on SIGINT and SIGTERM, flushing
// any buffered events before exiting.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/funnel-video/funnel/internal/clickhouse"
	"github.com/funnel-video/funnel/internal/config"
	"github.com/funnel-video/funnel/internal/ingest"
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
		Str("relay_url", config.SafeURL(cfg.Relay.URL)).
		Str("clickhouse_url", config.SafeURL(cfg.ClickHouse.URL)).
		Int("batch_size", cfg.Ingest.BatchSize).
		Dur("flush_interval", cfg.Ingest.FlushInterval).
		Bool("backfill", cfg.Ingest.Backfill).
		Msg("Starting Funnel ingestion daemon")

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
	if version, err := client.Version(ctx); err == nil {
		logging.Info().Str("version", version).Msg("Connected to ClickHouse")
	}

	if err := client.EnsureSchema(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to ensure schema")
	}

	flusher := ingest.NewFlusher(client, cfg.Relay.URL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if cfg.Ingest.Backfill {
		backfiller := ingest.NewBackfiller(cfg, flusher)
		if err := backfiller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Fatal().Err(err).Msg("Backfill failed")
		}
		logging.Info().Msg("Ingestion daemon stopped")
		return
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(ingest.NewLiveStreamer(cfg, client, flusher))

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

	logging.Info().Msg("Ingestion daemon stopped")
}
