// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/funnel-video/funnel/internal/config"
	"github.com/funnel-video/funnel/internal/logging"
	"github.com/funnel-video/funnel/internal/metrics"
	"github.com/funnel-video/funnel/internal/nostr"
)

const (
	// paginationLimit is the page size requested per fetch.
	paginationLimit = 5000

	// paginateInterval paces page fetches so the relay is not hammered.
	paginateInterval = 500 * time.Millisecond

	// pageTimeout bounds a single page fetch.
	pageTimeout = 60 * time.Second

	// fetchRetryDelay is the pause after a failed page fetch.
	fetchRetryDelay = 2 * time.Second

	// emptyStreakLimit is how many consecutive empty pages mean the
	// relay has nothing older to give.
	emptyStreakLimit = 3

	// emptyStepBack is how far the cursor jumps past a gap when a
	// page comes back empty.
	emptyStepBack = 7 * 24 * time.Hour
)

// Backfiller pages backwards through a relay's history and writes
// everything to the store. Deduplication is the store's job, so pages
// may overlap freely.
type Backfiller struct {
	relayURL  string
	batchSize int
	flusher   *Flusher
	dial      DialFunc
}

// NewBackfiller wires a backfiller from configuration.
func NewBackfiller(cfg *config.Config, flusher *Flusher) *Backfiller {
	return &Backfiller{
		relayURL:  cfg.Relay.URL,
		batchSize: cfg.Ingest.BatchSize,
		flusher:   flusher,
		dial:      defaultDial,
	}
}

// Run paginates from the newest events backwards until the relay
// returns three empty pages in a row. It returns nil on completion.
func (b *Backfiller) Run(ctx context.Context) error {
	conn, err := b.dial(ctx, b.relayURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	logging.Info().Str("relay", b.relayURL).Msg("Connected to relay for backfill")

	limiter := rate.NewLimiter(rate.Every(paginateInterval), 1)

	var (
		totalEvents      uint64
		until            int64
		haveUntil        bool
		consecutiveEmpty int
	)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		// No kind restriction: engagement events are needed alongside
		// the videos for the stats aggregates.
		filter := nostr.Filter{Limit: paginationLimit}
		if haveUntil {
			filter.Until = until
		}

		logging.Info().
			Int64("until", until).
			Int("limit", paginationLimit).
			Uint64("total_so_far", totalEvents).
			Msg("Fetching page")

		events, err := conn.Fetch(filter, pageTimeout)
		if err != nil {
			logging.Warn().Err(err).Msg("Fetch failed, retrying")
			select {
			case <-time.After(fetchRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if len(events) == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= emptyStreakLimit {
				logging.Info().Msg("No more events after 3 empty pages")
				break
			}
			// Jump the cursor past a possible gap in stored history.
			if haveUntil {
				until -= int64(emptyStepBack.Seconds())
			}
			continue
		}
		consecutiveEmpty = 0

		oldest := events[0].CreatedAt
		for _, e := range events {
			metrics.RecordEventReceived(strconv.FormatInt(e.Kind, 10))
			if e.CreatedAt < oldest {
				oldest = e.CreatedAt
			}
		}

		logging.Info().
			Int("count", len(events)).
			Int64("oldest", oldest).
			Msg("Received page")

		for start := 0; start < len(events); start += b.batchSize {
			end := start + b.batchSize
			if end > len(events) {
				end = len(events)
			}
			if err := b.flusher.Flush(ctx, events[start:end]); err != nil {
				return fmt.Errorf("backfill flush: %w", err)
			}
			totalEvents += uint64(end - start)
		}

		logging.Info().
			Int("page_inserted", len(events)).
			Uint64("total_events", totalEvents).
			Msg("Inserted")

		until = oldest - 1
		haveUntil = true
	}

	logging.Info().Uint64("total_events", totalEvents).Msg("Backfill complete")
	return nil
}
