// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package relay implements a websocket client for Nostr relays. It
// speaks the client side of NIP-01: REQ subscriptions, EVENT/EOSE/NOTICE
// frames, and one-shot paginated fetches for backfill.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/funnel-video/funnel/internal/logging"
	"github.com/funnel-video/funnel/internal/nostr"
)

const (
	// writeWait bounds how long a single frame write may take.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 10 * time.Second

	// frameBuffer is the pump-to-consumer channel depth. A full buffer
	// blocks the pump, pushing backpressure onto TCP.
	frameBuffer = 64
)

// ErrStreamClosed is returned when the relay closes the connection.
var ErrStreamClosed = errors.New("relay stream closed")

// errRecvTimeout reports that no frame arrived within the caller's
// window. The connection itself is still healthy.
var errRecvTimeout = errors.New("relay receive timed out")

// Conn is a single websocket connection to a relay. A dedicated pump
// goroutine owns every socket read and feeds decoded frames to a
// channel, so ReadFrame's wait window never touches the socket: a
// quiet interval expires the wait, not the connection. Writes are
// serialized with a mutex so subscriptions can be managed while the
// pump runs.
type Conn struct {
	url  string
	conn *websocket.Conn

	writeMu sync.Mutex

	frames chan *nostr.Frame
	// readErr is set by the pump before it closes frames, so readers
	// that observe the closed channel also observe the error.
	readErr   error
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the relay at the given ws:// or wss:// URL and
// starts the read pump.
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	wsConn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}

	c := &Conn{
		url:    url,
		conn:   wsConn,
		frames: make(chan *nostr.Frame, frameBuffer),
		done:   make(chan struct{}),
	}

	// Gorilla's default ping handler answers relay PINGs with PONGs as
	// long as the pump keeps reading.
	go c.readPump()
	return c, nil
}

// readPump owns the socket reads. It decodes frames onto the channel
// until the socket fails, then records the failure and closes the
// channel. An unparsable frame is logged and skipped; it never breaks
// the stream.
func (c *Conn) readPump() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.readErr = ErrStreamClosed
			} else {
				c.readErr = fmt.Errorf("read relay message: %w", err)
			}
			close(c.frames)
			return
		}

		frame, err := nostr.DecodeFrame(data)
		if err != nil {
			logging.Warn().Err(err).Str("relay", c.url).Msg("Skipping unparsable frame")
			continue
		}

		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}

// URL returns the relay endpoint this connection was dialed with.
func (c *Conn) URL() string {
	return c.url
}

// Subscribe opens a subscription with the given ID and filter.
func (c *Conn) Subscribe(subID string, filter nostr.Filter) error {
	msg, err := nostr.EncodeReq(subID, filter)
	if err != nil {
		return fmt.Errorf("encode REQ: %w", err)
	}
	return c.write(msg)
}

// Unsubscribe closes the subscription with the given ID.
func (c *Conn) Unsubscribe(subID string) error {
	msg, err := nostr.EncodeClose(subID)
	if err != nil {
		return fmt.Errorf("encode CLOSE: %w", err)
	}
	return c.write(msg)
}

func (c *Conn) write(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("write relay message: %w", err)
	}
	return nil
}

// ReadFrame returns the next decoded relay frame, waiting at most
// timeout. An expired wait returns an error for which IsTimeout is
// true, and the connection stays usable for further reads. A closed
// connection returns ErrStreamClosed.
func (c *Conn) ReadFrame(timeout time.Duration) (*nostr.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame, ok := <-c.frames:
		if !ok {
			return nil, c.readErr
		}
		return frame, nil
	case <-timer.C:
		return nil, errRecvTimeout
	}
}

// IsTimeout reports whether err is a receive window expiry rather than
// a real failure.
func IsTimeout(err error) bool {
	if errors.Is(err, errRecvTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Fetch runs a one-shot query: it subscribes with a throwaway ID,
// collects events until EOSE, then closes the subscription. When the
// timeout elapses before EOSE arrives, the events received so far are
// returned without error so callers paginating against a slow relay
// still make progress.
func (c *Conn) Fetch(filter nostr.Filter, timeout time.Duration) ([]*nostr.Event, error) {
	subID := uuid.NewString()
	if err := c.Subscribe(subID, filter); err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Unsubscribe(subID); err != nil {
			logging.Debug().Err(err).Str("sub_id", subID).Msg("Failed to close subscription")
		}
	}()

	deadline := time.Now().Add(timeout)
	var events []*nostr.Event
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			logging.Debug().Int("count", len(events)).Msg("Fetch window elapsed before EOSE, returning partial page")
			return events, nil
		}

		frame, err := c.ReadFrame(remaining)
		if err != nil {
			if IsTimeout(err) {
				logging.Debug().Int("count", len(events)).Msg("Fetch window elapsed before EOSE, returning partial page")
				return events, nil
			}
			return events, err
		}

		switch frame.Type {
		case "EVENT":
			if frame.SubID == subID {
				events = append(events, frame.Event)
			}
		case "EOSE":
			if frame.SubID == subID {
				return events, nil
			}
		case "NOTICE":
			logging.Warn().Str("relay", c.url).Str("notice", frame.Notice).Msg("Relay notice")
		}
	}
}

// Close stops the pump and closes the websocket connection, sending a
// close frame first when possible.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.writeMu.Lock()
	deadline := time.Now().Add(writeWait)
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	return c.conn.Close()
}
