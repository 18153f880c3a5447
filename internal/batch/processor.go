// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package batch accumulates events into size- or time-bounded batches
// for ClickHouse inserts. The processor is pure bookkeeping: it never
// does I/O and is not safe for concurrent use; the ingest loop owns it.
package batch

import (
	"time"

	"github.com/funnel-video/funnel/internal/nostr"
)

// FlushReason says why a batch is due for flushing.
type FlushReason int

const (
	// FlushNone means the batch is not due.
	FlushNone FlushReason = iota

	// FlushBatchFull means the batch reached its size limit.
	FlushBatchFull

	// FlushTimeout means a non-empty batch exceeded the flush interval.
	FlushTimeout
)

func (r FlushReason) String() string {
	switch r {
	case FlushBatchFull:
		return "batch_full"
	case FlushTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// Config bounds a batch in size and age.
type Config struct {
	MaxBatchSize  int
	FlushInterval time.Duration
}

// DefaultConfig matches the pipeline defaults: 1000 events or 100ms.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:  1000,
		FlushInterval: 100 * time.Millisecond,
	}
}

// Processor accumulates events until a flush is due.
type Processor struct {
	cfg       Config
	batch     []*nostr.Event
	lastFlush time.Time
}

// NewProcessor creates a processor. The flush timer starts now.
func NewProcessor(cfg Config) *Processor {
	return &Processor{
		cfg:       cfg,
		batch:     make([]*nostr.Event, 0, cfg.MaxBatchSize),
		lastFlush: time.Now(),
	}
}

// Push adds an event to the batch.
func (p *Processor) Push(event *nostr.Event) {
	p.batch = append(p.batch, event)
}

// ShouldFlush reports whether the batch is due. Size wins over age; an
// empty batch is never due, so an idle stream does not cause empty
// flush cycles.
func (p *Processor) ShouldFlush() FlushReason {
	switch {
	case len(p.batch) >= p.cfg.MaxBatchSize:
		return FlushBatchFull
	case len(p.batch) > 0 && time.Since(p.lastFlush) >= p.cfg.FlushInterval:
		return FlushTimeout
	default:
		return FlushNone
	}
}

// TakeBatch removes and returns the buffered events and resets the
// flush timer. Returns nil when the batch is empty, in which case the
// timer is not touched.
func (p *Processor) TakeBatch() []*nostr.Event {
	if len(p.batch) == 0 {
		return nil
	}
	return p.TakeBatchForce()
}

// TakeBatchForce removes and returns the buffered events even when
// empty, resetting the flush timer. Used on shutdown.
func (p *Processor) TakeBatchForce() []*nostr.Event {
	batch := p.batch
	p.batch = make([]*nostr.Event, 0, p.cfg.MaxBatchSize)
	p.lastFlush = time.Now()
	return batch
}

// Len returns the number of buffered events.
func (p *Processor) Len() int {
	return len(p.batch)
}

// Oldest returns the earliest-pushed buffered event, or nil when the
// batch is empty. The ingest loop uses it to compute the lag gauge.
func (p *Processor) Oldest() *nostr.Event {
	if len(p.batch) == 0 {
		return nil
	}
	return p.batch[0]
}

// FlushInterval returns the configured flush interval.
func (p *Processor) FlushInterval() time.Duration {
	return p.cfg.FlushInterval
}

// TimeSinceFlush returns the elapsed time since the last flush.
func (p *Processor) TimeSinceFlush() time.Duration {
	return time.Since(p.lastFlush)
}
