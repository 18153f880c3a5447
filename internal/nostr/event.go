// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package nostr models Nostr events and the wire formats Funnel consumes:
// bare event JSON, strfry stream wrappers, and relay websocket frames.
package nostr

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Video event kinds per NIP-71.
const (
	// KindVideoHorizontal is a normal (landscape) video event.
	KindVideoHorizontal = 34235

	// KindVideoVertical is a short (portrait) video event.
	KindVideoVertical = 34236
)

// VideoKinds lists the replaceable video event kinds.
var VideoKinds = []int64{KindVideoHorizontal, KindVideoVertical}

// Event is a Nostr event as received from a relay or a stream dump.
// Tags are arbitrary-length string arrays; the first element names the
// tag and the rest are its values.
type Event struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int64      `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// GetTag returns the first value of the first tag named name, or ""
// if no such tag exists or it carries no value.
func (e *Event) GetTag(name string) string {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// GetTags returns the first value of every tag named name, in order.
func (e *Event) GetTags(name string) []string {
	var values []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			values = append(values, tag[1])
		}
	}
	return values
}

// IsVideo reports whether the event is one of the NIP-71 video kinds.
func (e *Event) IsVideo() bool {
	return e.Kind == KindVideoHorizontal || e.Kind == KindVideoVertical
}

// VideoMeta is the video metadata extracted from a NIP-71 event's tags.
type VideoMeta struct {
	// DTag is the replaceable-event identifier. Required; events
	// without one are not valid parameterized replaceable events.
	DTag string

	Title     string
	Thumbnail string
	URL       string
	Hashtags  []string
}

// ParseVideoMeta extracts video metadata from the event's tags. It
// returns an error for non-video kinds and for events lacking the
// required "d" tag. The thumbnail falls back from "thumb" to
// "thumbnail"; hashtags collect every "t" tag.
func ParseVideoMeta(e *Event) (*VideoMeta, error) {
	if !e.IsVideo() {
		return nil, fmt.Errorf("event %s has kind %d, not a video kind", e.ID, e.Kind)
	}

	dTag := e.GetTag("d")
	if dTag == "" {
		return nil, fmt.Errorf("event %s missing required d tag", e.ID)
	}

	thumbnail := e.GetTag("thumb")
	if thumbnail == "" {
		thumbnail = e.GetTag("thumbnail")
	}

	return &VideoMeta{
		DTag:      dTag,
		Title:     e.GetTag("title"),
		Thumbnail: thumbnail,
		URL:       e.GetTag("url"),
		Hashtags:  e.GetTags("t"),
	}, nil
}

// StreamMessage is the wrapper strfry emits on its event stream. The
// optional fields carry relay-side provenance.
type StreamMessage struct {
	Type       string          `json:"type"`
	Event      *Event          `json:"event"`
	ReceivedAt float64         `json:"receivedAt,omitempty"`
	SourceType string          `json:"sourceType,omitempty"`
	SourceInfo json.RawMessage `json:"sourceInfo,omitempty"`
}

// ParseLine decodes one line of an event stream. Lines may be strfry
// stream wrappers or bare event JSON; the wrapper form is tried first.
// Blank lines yield (nil, nil) so callers can skip them cheaply.
func ParseLine(line string) (*Event, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	var msg StreamMessage
	if err := json.Unmarshal([]byte(line), &msg); err == nil && msg.Event != nil {
		return msg.Event, nil
	}

	var event Event
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return nil, fmt.Errorf("line is neither a stream message nor an event: %w", err)
	}
	if event.ID == "" {
		return nil, fmt.Errorf("event missing id")
	}
	return &event, nil
}
