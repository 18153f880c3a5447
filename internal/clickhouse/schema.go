// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package clickhouse

import (
	"context"

	"github.com/funnel-video/funnel/internal/logging"
)

// schemaDDL holds the schema statements in dependency order. The base
// table uses ReplacingMergeTree ordered by id, so replayed or
// re-fetched events deduplicate at merge time and inserts stay blind.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS events_local (
		id           String,
		pubkey       String,
		created_at   DateTime,
		kind         UInt16,
		content      String,
		sig          String,
		tags         Array(Array(String)),
		relay_source String
	)
	ENGINE = ReplacingMergeTree
	ORDER BY id`,

	// One row per (pubkey, d_tag): the latest revision of each
	// addressable video event, with tag-derived columns extracted.
	`CREATE VIEW IF NOT EXISTS videos AS
	SELECT
		argMax(id, created_at)        AS id,
		pubkey,
		max(created_at)               AS created_at,
		argMax(kind, created_at)      AS kind,
		d_tag,
		argMax(title, created_at)     AS title,
		argMax(thumbnail, created_at) AS thumbnail,
		argMax(hashtags, created_at)  AS hashtags
	FROM (
		SELECT
			id,
			pubkey,
			created_at,
			kind,
			arrayFirst(t -> t[1] = 'd', tags)[2]     AS d_tag,
			arrayFirst(t -> t[1] = 'title', tags)[2] AS title,
			coalesce(
				nullIf(arrayFirst(t -> t[1] = 'thumb', tags)[2], ''),
				arrayFirst(t -> t[1] = 'thumbnail', tags)[2]
			)                                        AS thumbnail,
			arrayMap(t -> t[2], arrayFilter(t -> t[1] = 't', tags)) AS hashtags
		FROM events_local
		WHERE kind IN (34235, 34236)
			AND arrayExists(t -> t[1] = 'd', tags)
	)
	GROUP BY pubkey, d_tag`,

	// Engagement counts per video: reactions (kind 7), comments
	// (kind 1 replies) and reposts (kind 6), matched through the
	// referencing e tag.
	`CREATE VIEW IF NOT EXISTS video_stats AS
	SELECT
		v.id                                                    AS id,
		v.pubkey                                                AS pubkey,
		v.created_at                                            AS created_at,
		v.kind                                                  AS kind,
		v.d_tag                                                 AS d_tag,
		v.title                                                 AS title,
		v.thumbnail                                             AS thumbnail,
		coalesce(e.reactions, 0)                                AS reactions,
		coalesce(e.comments, 0)                                 AS comments,
		coalesce(e.reposts, 0)                                  AS reposts,
		coalesce(e.reactions, 0)
			+ 2 * coalesce(e.comments, 0)
			+ 3 * coalesce(e.reposts, 0)                    AS engagement_score
	FROM videos v
	LEFT JOIN (
		SELECT
			arrayFirst(t -> t[1] = 'e', tags)[2] AS target_id,
			toUInt64(countIf(kind = 7))          AS reactions,
			toUInt64(countIf(kind = 1))          AS comments,
			toUInt64(countIf(kind = 6))          AS reposts
		FROM events_local
		WHERE kind IN (1, 6, 7)
			AND arrayExists(t -> t[1] = 'e', tags)
		GROUP BY target_id
	) e ON e.target_id = v.id`,

	`CREATE VIEW IF NOT EXISTS trending_videos AS
	SELECT
		id,
		pubkey,
		created_at,
		kind,
		d_tag,
		title,
		thumbnail,
		reactions,
		comments,
		reposts,
		engagement_score,
		engagement_score / pow(dateDiff('hour', created_at, now()) + 2, 1.5) AS trending_score
	FROM video_stats
	ORDER BY trending_score DESC`,

	// Inverted index: one row per (video, hashtag).
	`CREATE VIEW IF NOT EXISTS video_hashtags AS
	SELECT
		id        AS event_id,
		hashtag,
		created_at,
		pubkey,
		kind,
		title,
		thumbnail,
		d_tag
	FROM videos
	ARRAY JOIN hashtags AS hashtag`,
}

// EnsureSchema creates the base table and views when the database is
// empty. Every statement is idempotent, so a partially created schema
// is completed rather than erroring.
func (c *Client) EnsureSchema(ctx context.Context) error {
	exists, err := c.CheckSchema(ctx)
	if err != nil {
		return err
	}
	if exists {
		logging.Debug().Str("database", c.database).Msg("Schema already present")
		return nil
	}

	logging.Info().Str("database", c.database).Msg("Creating schema")
	for _, ddl := range schemaDDL {
		if err := c.ExecuteDDL(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}
