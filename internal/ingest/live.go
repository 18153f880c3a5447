// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/funnel-video/funnel/internal/batch"
	"github.com/funnel-video/funnel/internal/config"
	"github.com/funnel-video/funnel/internal/logging"
	"github.com/funnel-video/funnel/internal/metrics"
	"github.com/funnel-video/funnel/internal/nostr"
	"github.com/funnel-video/funnel/internal/relay"
)

const (
	// liveSubID is the fixed subscription ID for the live stream.
	liveSubID = "funnel-live"

	// catchupBuffer widens the resume window to pick up backdated
	// events that arrived while the service was down.
	catchupBuffer = 2 * 24 * time.Hour

	// progressLogInterval spaces the periodic throughput log lines.
	progressLogInterval = 30 * time.Second
)

// TimestampProber is the store capability the live streamer uses to
// pick its resume point.
type TimestampProber interface {
	GetLatestEventTimestamp(ctx context.Context) (int64, bool, error)
}

// Conn is the subset of the relay connection the streamer drives.
// *relay.Conn satisfies it; tests substitute scripted fakes.
type Conn interface {
	Subscribe(subID string, filter nostr.Filter) error
	ReadFrame(timeout time.Duration) (*nostr.Frame, error)
	Fetch(filter nostr.Filter, timeout time.Duration) ([]*nostr.Event, error)
	Close() error
}

// DialFunc opens a relay connection.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// defaultDial adapts relay.Dial to the Conn interface.
func defaultDial(ctx context.Context, url string) (Conn, error) {
	return relay.Dial(ctx, url)
}

// LiveStreamer tails the relay and flushes batches to the store. It is
// a suture service: Serve runs until the context is cancelled,
// reconnecting with a fixed delay whenever the stream drops.
type LiveStreamer struct {
	relayURL       string
	reconnectDelay time.Duration
	batchCfg       batch.Config
	prober         TimestampProber
	flusher        *Flusher
	dial           DialFunc

	// now is swapped in tests.
	now func() time.Time
}

// NewLiveStreamer wires a streamer from configuration.
func NewLiveStreamer(cfg *config.Config, prober TimestampProber, flusher *Flusher) *LiveStreamer {
	return &LiveStreamer{
		relayURL:       cfg.Relay.URL,
		reconnectDelay: cfg.Relay.ReconnectDelay,
		batchCfg: batch.Config{
			MaxBatchSize:  cfg.Ingest.BatchSize,
			FlushInterval: cfg.Ingest.FlushInterval,
		},
		prober:  prober,
		flusher: flusher,
		dial:    defaultDial,
		now:     time.Now,
	}
}

// Serve implements suture.Service. Each stream failure is logged and
// followed by a reconnect after the configured delay; only context
// cancellation ends the loop.
func (s *LiveStreamer) Serve(ctx context.Context) error {
	for {
		err := s.runStream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Warn().
			Err(err).
			Dur("reconnect_delay", s.reconnectDelay).
			Msg("Stream ended, reconnecting")

		select {
		case <-time.After(s.reconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runStream runs one connection: probe the resume point, subscribe,
// and pump frames into the batch processor until the stream breaks.
func (s *LiveStreamer) runStream(ctx context.Context) error {
	since, err := s.resumePoint(ctx)
	if err != nil {
		return err
	}

	conn, err := s.dial(ctx, s.relayURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The subscription carries no kind restriction: reactions, comments
	// and reposts must land in the store alongside the videos they
	// reference, or the engagement counts have nothing to aggregate.
	filter := nostr.Filter{Since: since}
	if err := conn.Subscribe(liveSubID, filter); err != nil {
		return err
	}
	logging.Info().
		Str("relay", s.relayURL).
		Int64("since", since).
		Msg("Subscribed to live stream")

	proc := batch.NewProcessor(s.batchCfg)
	lastLog := s.now()
	var eventsSinceLog uint64

	for {
		if ctx.Err() != nil {
			return s.shutdownFlush(ctx, proc)
		}

		frame, err := conn.ReadFrame(proc.FlushInterval())
		switch {
		case err == nil:
			if n := s.handleFrame(frame, proc); n {
				eventsSinceLog++
			}
		case relay.IsTimeout(err):
			// Quiet relay; fall through to the flush check.
		default:
			if flushErr := s.shutdownFlush(ctx, proc); flushErr != nil {
				return flushErr
			}
			if errors.Is(err, relay.ErrStreamClosed) {
				return err
			}
			return fmt.Errorf("stream read: %w", err)
		}

		s.updateLag(proc)

		if reason := proc.ShouldFlush(); reason != batch.FlushNone {
			events := proc.TakeBatch()
			if err := s.flusher.Flush(ctx, events); err != nil {
				return fmt.Errorf("flush (%s, %d events): %w", reason, len(events), err)
			}
		}

		if s.now().Sub(lastLog) >= progressLogInterval {
			logging.Info().Uint64("events_received", eventsSinceLog).Msg("Progress")
			eventsSinceLog = 0
			lastLog = s.now()
		}
	}
}

// resumePoint picks the since timestamp: the newest stored event minus
// the catch-up buffer, or now when the store is empty.
func (s *LiveStreamer) resumePoint(ctx context.Context) (int64, error) {
	latest, ok, err := s.prober.GetLatestEventTimestamp(ctx)
	if err != nil {
		return 0, fmt.Errorf("probe latest timestamp: %w", err)
	}
	if !ok {
		logging.Info().Msg("No existing events, subscribing to new events only (use BACKFILL=1 for historical)")
		return s.now().Unix(), nil
	}

	since := latest - int64(catchupBuffer.Seconds())
	logging.Info().
		Int64("latest_event", latest).
		Int64("since_with_buffer", since).
		Msg("Resuming from last known timestamp with buffer")
	return since, nil
}

// handleFrame routes one relay frame, returning true when it carried
// an event.
func (s *LiveStreamer) handleFrame(frame *nostr.Frame, proc *batch.Processor) bool {
	switch frame.Type {
	case "EVENT":
		if frame.SubID != liveSubID || frame.Event == nil {
			return false
		}
		metrics.RecordEventReceived(strconv.FormatInt(frame.Event.Kind, 10))
		proc.Push(frame.Event)
		return true
	case "EOSE":
		logging.Info().Msg("EOSE received, now streaming live events")
	case "NOTICE":
		logging.Warn().Str("notice", frame.Notice).Msg("Relay notice")
	}
	return false
}

// updateLag refreshes the lag gauge from the oldest buffered event.
func (s *LiveStreamer) updateLag(proc *batch.Processor) {
	if oldest := proc.Oldest(); oldest != nil {
		metrics.RecordLag(s.now().Sub(time.Unix(oldest.CreatedAt, 0)))
	} else {
		metrics.ResetLag()
	}
}

// shutdownFlush drains whatever is buffered before the connection is
// abandoned, so a stream drop loses nothing that was already decoded.
func (s *LiveStreamer) shutdownFlush(ctx context.Context, proc *batch.Processor) error {
	events := proc.TakeBatchForce()
	if len(events) == 0 {
		return nil
	}
	if err := s.flusher.Flush(ctx, events); err != nil {
		return fmt.Errorf("shutdown flush (%d events): %w", len(events), err)
	}
	return nil
}
