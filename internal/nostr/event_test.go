// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package nostr

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

const validEventJSON = `{
	"id": "4376c65d2f232afbe9b882a35baa4f6fe8667c4e684749af565f981833ed6a65",
	"pubkey": "6e468422dfb74a5738702a8823b9b28168abab8655faacb6853cd0ee15deee93",
	"created_at": 1673347337,
	"kind": 1,
	"tags": [
		["e", "3da979448d9ba263864c4d6f14984c423a3838364ec255f03c7904b1ae77f206"],
		["p", "bf2376e17ba4ec269d10fcc996a4746b451152be9031fa48e74553dde5526bce"]
	],
	"content": "Hello, Nostr!",
	"sig": "908a15e46fb4d8675bab026fc230a0e3542bfade63da02d542fb78b2a8513fcd0092619a2c8c1221e581946e0191f2af505dfdf8657a414dbca329186f009262"
}`

const videoEventJSON = `{
	"id": "a376c65d2f232afbe9b882a35baa4f6fe8667c4e684749af565f981833ed6a65",
	"pubkey": "6e468422dfb74a5738702a8823b9b28168abab8655faacb6853cd0ee15deee93",
	"created_at": 1700000000,
	"kind": 34235,
	"tags": [
		["d", "my-video-id"],
		["title", "My Cool Video"],
		["thumb", "https://example.com/thumb.jpg"],
		["url", "https://example.com/video.mp4"],
		["t", "nostr"],
		["t", "bitcoin"],
		["p", "bf2376e17ba4ec269d10fcc996a4746b451152be9031fa48e74553dde5526bce"]
	],
	"content": "Check out my video!",
	"sig": "908a15e46fb4d8675bab026fc230a0e3542bfade63da02d542fb78b2a8513fcd0092619a2c8c1221e581946e0191f2af505dfdf8657a414dbca329186f009262"
}`

const shortVideoEventJSON = `{
	"id": "b376c65d2f232afbe9b882a35baa4f6fe8667c4e684749af565f981833ed6a65",
	"pubkey": "6e468422dfb74a5738702a8823b9b28168abab8655faacb6853cd0ee15deee93",
	"created_at": 1700000001,
	"kind": 34236,
	"tags": [
		["d", "my-short-id"],
		["title", "Short clip"]
	],
	"content": "",
	"sig": "908a15e46fb4d8675bab026fc230a0e3542bfade63da02d542fb78b2a8513fcd0092619a2c8c1221e581946e0191f2af505dfdf8657a414dbca329186f009262"
}`

const strfryMessageJSON = `{
	"type": "EVENT",
	"event": {
		"id": "4376c65d2f232afbe9b882a35baa4f6fe8667c4e684749af565f981833ed6a65",
		"pubkey": "6e468422dfb74a5738702a8823b9b28168abab8655faacb6853cd0ee15deee93",
		"created_at": 1673347337,
		"kind": 1,
		"tags": [],
		"content": "Test",
		"sig": "908a15e46fb4d8675bab026fc230a0e3542bfade63da02d542fb78b2a8513fcd0092619a2c8c1221e581946e0191f2af505dfdf8657a414dbca329186f009262"
	},
	"receivedAt": 1673347338.123,
	"sourceType": "IP4",
	"sourceInfo": "192.168.1.1"
}`

func mustParse(t *testing.T, raw string) *Event {
	t.Helper()
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return &e
}

func TestEventUnmarshal(t *testing.T) {
	e := mustParse(t, validEventJSON)

	if e.ID != "4376c65d2f232afbe9b882a35baa4f6fe8667c4e684749af565f981833ed6a65" {
		t.Errorf("id = %q", e.ID)
	}
	if e.Kind != 1 {
		t.Errorf("kind = %d, want 1", e.Kind)
	}
	if e.CreatedAt != 1673347337 {
		t.Errorf("created_at = %d, want 1673347337", e.CreatedAt)
	}
	if e.Content != "Hello, Nostr!" {
		t.Errorf("content = %q", e.Content)
	}
	if len(e.Tags) != 2 {
		t.Errorf("len(tags) = %d, want 2", len(e.Tags))
	}
}

func TestIsVideo(t *testing.T) {
	if !mustParse(t, videoEventJSON).IsVideo() {
		t.Error("kind 34235 should be a video")
	}
	if !mustParse(t, shortVideoEventJSON).IsVideo() {
		t.Error("kind 34236 should be a video")
	}
	if mustParse(t, validEventJSON).IsVideo() {
		t.Error("kind 1 should not be a video")
	}
}

func TestGetTag(t *testing.T) {
	e := mustParse(t, videoEventJSON)

	tests := []struct {
		name string
		want string
	}{
		{"d", "my-video-id"},
		{"title", "My Cool Video"},
		{"thumb", "https://example.com/thumb.jpg"},
		{"url", "https://example.com/video.mp4"},
		{"nonexistent", ""},
	}
	for _, tt := range tests {
		if got := e.GetTag(tt.name); got != tt.want {
			t.Errorf("GetTag(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestGetTagReturnsFirstMatch(t *testing.T) {
	e := &Event{Tags: [][]string{{"t", "first"}, {"t", "second"}}}
	if got := e.GetTag("t"); got != "first" {
		t.Errorf("GetTag(t) = %q, want %q", got, "first")
	}
}

func TestGetTags(t *testing.T) {
	e := mustParse(t, videoEventJSON)

	got := e.GetTags("t")
	want := []string{"nostr", "bitcoin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetTags(t) = %v, want %v", got, want)
	}

	if tags := e.GetTags("nonexistent"); len(tags) != 0 {
		t.Errorf("GetTags(nonexistent) = %v, want empty", tags)
	}
}

func TestParseVideoMetaExtractsAllFields(t *testing.T) {
	meta, err := ParseVideoMeta(mustParse(t, videoEventJSON))
	if err != nil {
		t.Fatalf("ParseVideoMeta error: %v", err)
	}

	if meta.DTag != "my-video-id" {
		t.Errorf("d tag = %q", meta.DTag)
	}
	if meta.Title != "My Cool Video" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Thumbnail != "https://example.com/thumb.jpg" {
		t.Errorf("thumbnail = %q", meta.Thumbnail)
	}
	if meta.URL != "https://example.com/video.mp4" {
		t.Errorf("url = %q", meta.URL)
	}
	if !reflect.DeepEqual(meta.Hashtags, []string{"nostr", "bitcoin"}) {
		t.Errorf("hashtags = %v", meta.Hashtags)
	}
}

func TestParseVideoMetaMinimalVideo(t *testing.T) {
	meta, err := ParseVideoMeta(mustParse(t, shortVideoEventJSON))
	if err != nil {
		t.Fatalf("ParseVideoMeta error: %v", err)
	}

	if meta.DTag != "my-short-id" {
		t.Errorf("d tag = %q", meta.DTag)
	}
	if meta.Thumbnail != "" || meta.URL != "" {
		t.Errorf("thumbnail/url = %q/%q, want empty", meta.Thumbnail, meta.URL)
	}
	if len(meta.Hashtags) != 0 {
		t.Errorf("hashtags = %v, want empty", meta.Hashtags)
	}
}

func TestParseVideoMetaRejectsNonVideo(t *testing.T) {
	if _, err := ParseVideoMeta(mustParse(t, validEventJSON)); err == nil {
		t.Error("expected error for non-video kind")
	}
}

func TestParseVideoMetaRequiresDTag(t *testing.T) {
	e := &Event{
		ID:   "c376c65d2f232afbe9b882a35baa4f6fe8667c4e684749af565f981833ed6a65",
		Kind: KindVideoHorizontal,
		Tags: [][]string{{"title", "No D Tag"}},
	}
	if _, err := ParseVideoMeta(e); err == nil {
		t.Error("expected error for missing d tag")
	}
}

func TestParseVideoMetaThumbnailFallback(t *testing.T) {
	e := &Event{
		ID:   "d376c65d2f232afbe9b882a35baa4f6fe8667c4e684749af565f981833ed6a65",
		Kind: KindVideoHorizontal,
		Tags: [][]string{
			{"d", "test"},
			{"thumbnail", "https://example.com/alt-thumb.jpg"},
		},
	}
	meta, err := ParseVideoMeta(e)
	if err != nil {
		t.Fatalf("ParseVideoMeta error: %v", err)
	}
	if meta.Thumbnail != "https://example.com/alt-thumb.jpg" {
		t.Errorf("thumbnail = %q, want fallback value", meta.Thumbnail)
	}
}

func TestParseVideoMetaPrefersThumbOverThumbnail(t *testing.T) {
	e := &Event{
		ID:   "e376c65d2f232afbe9b882a35baa4f6fe8667c4e684749af565f981833ed6a65",
		Kind: KindVideoHorizontal,
		Tags: [][]string{
			{"d", "test"},
			{"thumbnail", "https://example.com/alt.jpg"},
			{"thumb", "https://example.com/primary.jpg"},
		},
	}
	meta, err := ParseVideoMeta(e)
	if err != nil {
		t.Fatalf("ParseVideoMeta error: %v", err)
	}
	if meta.Thumbnail != "https://example.com/primary.jpg" {
		t.Errorf("thumbnail = %q, want thumb tag value", meta.Thumbnail)
	}
}

func TestParseLineStrfryWrapper(t *testing.T) {
	e, err := ParseLine(strfryMessageJSON)
	if err != nil {
		t.Fatalf("ParseLine error: %v", err)
	}
	if e.ID != "4376c65d2f232afbe9b882a35baa4f6fe8667c4e684749af565f981833ed6a65" {
		t.Errorf("id = %q", e.ID)
	}
	if e.Content != "Test" {
		t.Errorf("content = %q, want %q", e.Content, "Test")
	}
}

func TestParseLineBareEvent(t *testing.T) {
	e, err := ParseLine(videoEventJSON)
	if err != nil {
		t.Fatalf("ParseLine error: %v", err)
	}
	if e.Kind != KindVideoHorizontal {
		t.Errorf("kind = %d, want %d", e.Kind, KindVideoHorizontal)
	}
}

func TestParseLineBlank(t *testing.T) {
	for _, line := range []string{"", "   ", "\t\n"} {
		e, err := ParseLine(line)
		if err != nil {
			t.Errorf("ParseLine(%q) error: %v", line, err)
		}
		if e != nil {
			t.Errorf("ParseLine(%q) = %v, want nil", line, e)
		}
	}
}

func TestParseLineInvalid(t *testing.T) {
	if _, err := ParseLine("not json"); err == nil {
		t.Error("expected error for non-JSON line")
	}
	if _, err := ParseLine(`{"id": ""}`); err == nil {
		t.Error("expected error for event without id")
	}
}
