// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package clickhouse

import (
	"time"

	"github.com/funnel-video/funnel/internal/nostr"
)

// EventRow is one row of the events_local base table.
type EventRow struct {
	ID          string
	Pubkey      string
	CreatedAt   time.Time
	Kind        uint16
	Content     string
	Sig         string
	Tags        [][]string
	RelaySource string
}

// RowFromEvent converts a decoded event into an insertable row.
// relaySource records which relay the event arrived from.
func RowFromEvent(e *nostr.Event, relaySource string) EventRow {
	tags := e.Tags
	if tags == nil {
		tags = [][]string{}
	}
	return EventRow{
		ID:          e.ID,
		Pubkey:      e.Pubkey,
		CreatedAt:   time.Unix(e.CreatedAt, 0).UTC(),
		Kind:        uint16(e.Kind),
		Content:     e.Content,
		Sig:         e.Sig,
		Tags:        tags,
		RelaySource: relaySource,
	}
}

// VideoStats is one row of the video_stats view: the latest video per
// (pubkey, d_tag) joined with its engagement counts.
type VideoStats struct {
	ID              string    `json:"id"`
	Pubkey          string    `json:"pubkey"`
	CreatedAt       time.Time `json:"created_at"`
	Kind            uint16    `json:"kind"`
	DTag            string    `json:"d_tag"`
	Title           string    `json:"title"`
	Thumbnail       string    `json:"thumbnail"`
	Reactions       uint64    `json:"reactions"`
	Comments        uint64    `json:"comments"`
	Reposts         uint64    `json:"reposts"`
	EngagementScore uint64    `json:"engagement_score"`
}

// TrendingVideo is a VideoStats row with its time-decayed score.
type TrendingVideo struct {
	ID              string    `json:"id"`
	Pubkey          string    `json:"pubkey"`
	CreatedAt       time.Time `json:"created_at"`
	Kind            uint16    `json:"kind"`
	DTag            string    `json:"d_tag"`
	Title           string    `json:"title"`
	Thumbnail       string    `json:"thumbnail"`
	Reactions       uint64    `json:"reactions"`
	Comments        uint64    `json:"comments"`
	Reposts         uint64    `json:"reposts"`
	EngagementScore uint64    `json:"engagement_score"`
	TrendingScore   float64   `json:"trending_score"`
}

// TrendingFromStats projects a VideoStats row into the trending shape
// with a zero score. The recent-video listing uses this so both sort
// orders share one response type.
func TrendingFromStats(s VideoStats) TrendingVideo {
	return TrendingVideo{
		ID:              s.ID,
		Pubkey:          s.Pubkey,
		CreatedAt:       s.CreatedAt,
		Kind:            s.Kind,
		DTag:            s.DTag,
		Title:           s.Title,
		Thumbnail:       s.Thumbnail,
		Reactions:       s.Reactions,
		Comments:        s.Comments,
		Reposts:         s.Reposts,
		EngagementScore: s.EngagementScore,
		TrendingScore:   0.0,
	}
}

// VideoHashtag is one row of the video_hashtags inverted index.
type VideoHashtag struct {
	EventID   string    `json:"event_id"`
	Hashtag   string    `json:"hashtag"`
	CreatedAt time.Time `json:"created_at"`
	Pubkey    string    `json:"pubkey"`
	Kind      uint16    `json:"kind"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail"`
	DTag      string    `json:"d_tag"`
}
