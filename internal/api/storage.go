// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package api serves the aggregate read endpoints over the ClickHouse
// views: per-video stats, listings, search and pipeline totals.
package api

import (
	"context"

	"github.com/funnel-video/funnel/internal/clickhouse"
)

// VideoQueries is the read capability the video endpoints need.
// *clickhouse.Client satisfies it; tests substitute mocks.
type VideoQueries interface {
	GetVideoStats(ctx context.Context, eventID string) (*clickhouse.VideoStats, error)
	GetVideosByAuthor(ctx context.Context, pubkey string, limit int) ([]clickhouse.VideoStats, error)
	GetTrendingVideos(ctx context.Context, limit int) ([]clickhouse.TrendingVideo, error)
	GetRecentVideos(ctx context.Context, kind *uint16, limit int) ([]clickhouse.VideoStats, error)
	SearchByHashtag(ctx context.Context, hashtag string, limit int) ([]clickhouse.VideoHashtag, error)
	SearchByText(ctx context.Context, query string, limit int) ([]clickhouse.VideoStats, error)
}

// StatsQueries is the capability behind the totals endpoint.
type StatsQueries interface {
	GetEventCount(ctx context.Context) (uint64, error)
	GetVideoCount(ctx context.Context) (uint64, error)
}

// Storage is the full store surface the API consumes.
type Storage interface {
	VideoQueries
	StatsQueries
}
