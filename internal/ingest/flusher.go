// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package ingest moves events from a Nostr relay into ClickHouse. It
// runs in one of two modes: live tailing from the last stored
// timestamp, or paginated historical backfill.
package ingest

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/funnel-video/funnel/internal/clickhouse"
	"github.com/funnel-video/funnel/internal/logging"
	"github.com/funnel-video/funnel/internal/metrics"
	"github.com/funnel-video/funnel/internal/nostr"
)

// EventWriter is the store capability the flusher needs.
type EventWriter interface {
	InsertEvents(ctx context.Context, events []clickhouse.EventRow) error
}

// Flusher converts event batches to rows and writes them through a
// circuit breaker, so a struggling ClickHouse sheds load instead of
// accumulating timed-out inserts.
type Flusher struct {
	writer      EventWriter
	breaker     *gobreaker.CircuitBreaker[interface{}]
	relaySource string
}

// NewFlusher wraps the writer. relaySource is recorded on every row.
func NewFlusher(writer EventWriter, relaySource string) *Flusher {
	settings := gobreaker.Settings{
		Name:        "clickhouse-insert",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	}

	return &Flusher{
		writer:      writer,
		breaker:     gobreaker.NewCircuitBreaker[interface{}](settings),
		relaySource: relaySource,
	}
}

// Flush writes the batch and records the ingestion metrics. An empty
// batch is a no-op. On failure nothing is recorded as written; the
// caller decides whether to retry or drop the connection.
func (f *Flusher) Flush(ctx context.Context, events []*nostr.Event) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]clickhouse.EventRow, len(events))
	for i, e := range events {
		rows[i] = clickhouse.RowFromEvent(e, f.relaySource)
	}

	start := time.Now()
	_, err := f.breaker.Execute(func() (interface{}, error) {
		return nil, f.writer.InsertEvents(ctx, rows)
	})
	if err != nil {
		return err
	}

	duration := time.Since(start)
	metrics.RecordBatchWritten(len(rows), duration)
	logging.Debug().
		Int("count", len(rows)).
		Dur("duration", duration).
		Msg("Flushed batch")
	return nil
}
