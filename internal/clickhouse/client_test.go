// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package clickhouse

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/funnel-video/funnel/internal/nostr"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		url        string
		wantAddr   string
		wantSecure bool
		wantErr    bool
	}{
		{"http://localhost:8123", "localhost:8123", false, false},
		{"http://localhost", "localhost:8123", false, false},
		{"https://ch.example.com", "ch.example.com:8443", true, false},
		{"https://ch.example.com:9000", "ch.example.com:9000", true, false},
		{"tcp://localhost:9000", "", false, true},
		{"://bad", "", false, true},
	}

	for _, tt := range tests {
		got, err := parseEndpoint(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseEndpoint(%q) expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseEndpoint(%q) error: %v", tt.url, err)
			continue
		}
		if got.addr != tt.wantAddr || got.secure != tt.wantSecure {
			t.Errorf("parseEndpoint(%q) = %+v, want addr=%q secure=%v",
				tt.url, got, tt.wantAddr, tt.wantSecure)
		}
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{URL: "tcp://localhost:9000", Database: "nostr"})
	if err == nil {
		t.Fatal("expected config error")
	}

	var chErr *Error
	if !errors.As(err, &chErr) || chErr.Kind != KindConfig {
		t.Errorf("error = %v, want KindConfig", err)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := queryErr("get_video_stats", errors.New("connection refused"))

	msg := err.Error()
	for _, want := range []string{"query", "get_video_stats", "connection refused"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := connErr("ping", inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindConnection, "connection"},
		{KindQuery, "query"},
		{KindSerialization, "serialization"},
		{KindConfig, "config"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestRowFromEvent(t *testing.T) {
	e := &nostr.Event{
		ID:        "abc",
		Pubkey:    "def",
		CreatedAt: 1700000000,
		Kind:      nostr.KindVideoHorizontal,
		Content:   "hello",
		Sig:       "sig",
		Tags:      [][]string{{"d", "vid-1"}},
	}

	row := RowFromEvent(e, "wss://relay.example")

	if row.ID != "abc" || row.Pubkey != "def" {
		t.Errorf("row = %+v", row)
	}
	if row.Kind != 34235 {
		t.Errorf("kind = %d, want 34235", row.Kind)
	}
	if !row.CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("created_at = %v", row.CreatedAt)
	}
	if row.RelaySource != "wss://relay.example" {
		t.Errorf("relay_source = %q", row.RelaySource)
	}
}

func TestRowFromEventNilTags(t *testing.T) {
	row := RowFromEvent(&nostr.Event{ID: "abc"}, "")
	if row.Tags == nil {
		t.Error("nil tags should convert to an empty slice")
	}
}

func TestTrendingFromStats(t *testing.T) {
	s := VideoStats{
		ID:              "abc",
		Pubkey:          "def",
		CreatedAt:       time.Unix(1700000000, 0).UTC(),
		Kind:            34236,
		DTag:            "clip",
		Title:           "Title",
		Reactions:       3,
		Comments:        2,
		Reposts:         1,
		EngagementScore: 10,
	}

	tv := TrendingFromStats(s)
	if tv.TrendingScore != 0.0 {
		t.Errorf("trending_score = %v, want 0.0", tv.TrendingScore)
	}
	if tv.ID != s.ID || tv.EngagementScore != s.EngagementScore || tv.Kind != s.Kind {
		t.Errorf("projection mismatch: %+v", tv)
	}
}

func TestSearchByTextEmptyQuerySkipsServer(t *testing.T) {
	// A whitespace-only query must return locally; the unreachable
	// endpoint would make any server round trip fail loudly.
	c, err := NewClient(Config{URL: "http://127.0.0.1:1", Database: "nostr"})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer c.Close()

	for _, q := range []string{"", "   ", "\t\n"} {
		got, err := c.SearchByText(context.Background(), q, 50)
		if err != nil {
			t.Errorf("SearchByText(%q) error: %v", q, err)
		}
		if got != nil {
			t.Errorf("SearchByText(%q) = %v, want nil", q, got)
		}
	}
}

func TestInsertEventsEmptyBatchIsNoop(t *testing.T) {
	c, err := NewClient(Config{URL: "http://127.0.0.1:1", Database: "nostr"})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer c.Close()

	if err := c.InsertEvents(context.Background(), nil); err != nil {
		t.Errorf("empty insert should be a no-op, got %v", err)
	}
}
