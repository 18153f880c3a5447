// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package clickhouse is the store adapter: batched event inserts over
// the HTTP interface and the typed read queries the API serves.
package clickhouse

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/funnel-video/funnel/internal/logging"
	"github.com/funnel-video/funnel/internal/metrics"
)

// Client wraps a pooled ClickHouse connection. It is safe for
// concurrent use; a failed insert or query does not invalidate it.
type Client struct {
	db       *sql.DB
	database string
}

// NewClient builds a client from the configuration. The connection is
// lazy; call Ping to verify it.
func NewClient(cfg Config) (*Client, error) {
	ep, err := parseEndpoint(cfg.URL)
	if err != nil {
		return nil, configErr("parse_url", err)
	}

	user := cfg.User
	if user == "" {
		user = "default"
	}

	opts := &ch.Options{
		Protocol: ch.HTTP,
		Addr:     []string{ep.addr},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: user,
			Password: cfg.Password,
		},
		// Inserts return as soon as the server buffers them; the
		// server batches them into parts itself.
		Settings: ch.Settings{
			"async_insert":          1,
			"wait_for_async_insert": 0,
		},
		DialTimeout: 10 * time.Second,
	}
	if ep.secure {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	db := ch.OpenDB(opts)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return &Client{db: db, database: cfg.Database}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the connection with a trivial query.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "SELECT 1"); err != nil {
		return connErr("ping", err)
	}
	logging.Debug().Msg("ClickHouse ping successful")
	return nil
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", queryErr("version", err)
	}
	return version, nil
}

// InsertEvents writes a batch of rows to events_local. An empty batch
// is a no-op. The insert is atomic: either every row is handed to the
// server or the whole batch fails.
func (c *Client) InsertEvents(ctx context.Context, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return connErr("insert_events", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO events_local (id, pubkey, created_at, kind, content, sig, tags, relay_source)")
	if err != nil {
		_ = tx.Rollback()
		return queryErr("insert_events", err)
	}
	defer stmt.Close()

	for i := range events {
		e := &events[i]
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Pubkey, e.CreatedAt, e.Kind, e.Content, e.Sig, e.Tags, e.RelaySource,
		); err != nil {
			_ = tx.Rollback()
			return queryErr("insert_events", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return queryErr("insert_events", err)
	}

	logging.Debug().Int("count", len(events)).Msg("Inserted events batch")
	return nil
}

const videoStatsColumns = "id, pubkey, created_at, kind, d_tag, title, thumbnail, reactions, comments, reposts, engagement_score"

func scanVideoStats(rows *sql.Rows) ([]VideoStats, error) {
	var out []VideoStats
	for rows.Next() {
		var v VideoStats
		if err := rows.Scan(&v.ID, &v.Pubkey, &v.CreatedAt, &v.Kind, &v.DTag, &v.Title,
			&v.Thumbnail, &v.Reactions, &v.Comments, &v.Reposts, &v.EngagementScore); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVideoStats returns the stats row for one video, or nil when no
// such video exists.
func (c *Client) GetVideoStats(ctx context.Context, eventID string) (*VideoStats, error) {
	defer observe("get_video_stats")()

	var v VideoStats
	err := c.db.QueryRowContext(ctx,
		"SELECT "+videoStatsColumns+" FROM video_stats WHERE id = ?", eventID,
	).Scan(&v.ID, &v.Pubkey, &v.CreatedAt, &v.Kind, &v.DTag, &v.Title,
		&v.Thumbnail, &v.Reactions, &v.Comments, &v.Reposts, &v.EngagementScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, queryErr("get_video_stats", err)
	}
	return &v, nil
}

// GetVideosByAuthor returns an author's videos, newest first.
func (c *Client) GetVideosByAuthor(ctx context.Context, pubkey string, limit int) ([]VideoStats, error) {
	defer observe("get_videos_by_author")()

	rows, err := c.db.QueryContext(ctx,
		"SELECT "+videoStatsColumns+" FROM video_stats WHERE pubkey = ? ORDER BY created_at DESC LIMIT ?",
		pubkey, limit)
	if err != nil {
		return nil, queryErr("get_videos_by_author", err)
	}
	defer rows.Close()

	out, err := scanVideoStats(rows)
	if err != nil {
		return nil, queryErr("get_videos_by_author", err)
	}
	return out, nil
}

// GetTrendingVideos returns the top trending videos in the view's
// native order (descending trending score).
func (c *Client) GetTrendingVideos(ctx context.Context, limit int) ([]TrendingVideo, error) {
	defer observe("get_trending_videos")()

	rows, err := c.db.QueryContext(ctx,
		"SELECT id, pubkey, created_at, kind, d_tag, title, thumbnail, reactions, comments, reposts, engagement_score, trending_score FROM trending_videos LIMIT ?",
		limit)
	if err != nil {
		return nil, queryErr("get_trending_videos", err)
	}
	defer rows.Close()

	var out []TrendingVideo
	for rows.Next() {
		var v TrendingVideo
		if err := rows.Scan(&v.ID, &v.Pubkey, &v.CreatedAt, &v.Kind, &v.DTag, &v.Title,
			&v.Thumbnail, &v.Reactions, &v.Comments, &v.Reposts, &v.EngagementScore,
			&v.TrendingScore); err != nil {
			return nil, queryErr("get_trending_videos", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("get_trending_videos", err)
	}
	return out, nil
}

// GetRecentVideos returns the newest videos, optionally restricted to
// one kind.
func (c *Client) GetRecentVideos(ctx context.Context, kind *uint16, limit int) ([]VideoStats, error) {
	defer observe("get_recent_videos")()

	var (
		rows *sql.Rows
		err  error
	)
	if kind != nil {
		rows, err = c.db.QueryContext(ctx,
			"SELECT "+videoStatsColumns+" FROM video_stats WHERE kind = ? ORDER BY created_at DESC LIMIT ?",
			*kind, limit)
	} else {
		rows, err = c.db.QueryContext(ctx,
			"SELECT "+videoStatsColumns+" FROM video_stats ORDER BY created_at DESC LIMIT ?",
			limit)
	}
	if err != nil {
		return nil, queryErr("get_recent_videos", err)
	}
	defer rows.Close()

	out, err := scanVideoStats(rows)
	if err != nil {
		return nil, queryErr("get_recent_videos", err)
	}
	return out, nil
}

// SearchByHashtag returns videos tagged with the hashtag, newest first.
func (c *Client) SearchByHashtag(ctx context.Context, hashtag string, limit int) ([]VideoHashtag, error) {
	defer observe("search_by_hashtag")()

	rows, err := c.db.QueryContext(ctx,
		"SELECT event_id, hashtag, created_at, pubkey, kind, title, thumbnail, d_tag FROM video_hashtags WHERE hashtag = ? ORDER BY created_at DESC LIMIT ?",
		hashtag, limit)
	if err != nil {
		return nil, queryErr("search_by_hashtag", err)
	}
	defer rows.Close()

	var out []VideoHashtag
	for rows.Next() {
		var v VideoHashtag
		if err := rows.Scan(&v.EventID, &v.Hashtag, &v.CreatedAt, &v.Pubkey, &v.Kind,
			&v.Title, &v.Thumbnail, &v.DTag); err != nil {
			return nil, queryErr("search_by_hashtag", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("search_by_hashtag", err)
	}
	return out, nil
}

// SearchByText searches video titles. The query is split on whitespace
// and every token must match on a word boundary, case-insensitively.
// A query with no tokens returns an empty result without touching the
// server.
func (c *Client) SearchByText(ctx context.Context, query string, limit int) ([]VideoStats, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	defer observe("search_by_text")()

	conditions := make([]string, len(tokens))
	args := make([]interface{}, 0, len(tokens)+1)
	for i, token := range tokens {
		conditions[i] = "hasTokenCaseInsensitive(title, ?)"
		args = append(args, token)
	}
	args = append(args, limit)

	sqlText := fmt.Sprintf(
		"SELECT %s FROM video_stats WHERE %s ORDER BY created_at DESC LIMIT ?",
		videoStatsColumns, strings.Join(conditions, " AND "))

	rows, err := c.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, queryErr("search_by_text", err)
	}
	defer rows.Close()

	out, err := scanVideoStats(rows)
	if err != nil {
		return nil, queryErr("search_by_text", err)
	}
	return out, nil
}

// GetEventCount returns the total number of stored events.
func (c *Client) GetEventCount(ctx context.Context) (uint64, error) {
	defer observe("get_event_count")()

	var count uint64
	if err := c.db.QueryRowContext(ctx, "SELECT count() FROM events_local").Scan(&count); err != nil {
		return 0, queryErr("get_event_count", err)
	}
	return count, nil
}

// GetVideoCount returns the number of distinct videos.
func (c *Client) GetVideoCount(ctx context.Context) (uint64, error) {
	defer observe("get_video_count")()

	var count uint64
	if err := c.db.QueryRowContext(ctx, "SELECT count() FROM videos").Scan(&count); err != nil {
		return 0, queryErr("get_video_count", err)
	}
	return count, nil
}

// GetLatestEventTimestamp returns the newest stored created_at as a
// Unix timestamp, or (0, false) when the table is empty. The count
// probe comes first because max() over an empty table yields the epoch
// rather than an absence.
func (c *Client) GetLatestEventTimestamp(ctx context.Context) (int64, bool, error) {
	var count uint64
	if err := c.db.QueryRowContext(ctx, "SELECT count() FROM events_local").Scan(&count); err != nil {
		return 0, false, queryErr("get_latest_event_timestamp", err)
	}
	if count == 0 {
		return 0, false, nil
	}

	var ts int64
	if err := c.db.QueryRowContext(ctx,
		"SELECT toUnixTimestamp(max(created_at)) FROM events_local").Scan(&ts); err != nil {
		return 0, false, queryErr("get_latest_event_timestamp", err)
	}
	return ts, true, nil
}

// CheckSchema reports whether the configured database contains any
// tables.
func (c *Client) CheckSchema(ctx context.Context) (bool, error) {
	var count uint64
	if err := c.db.QueryRowContext(ctx,
		"SELECT count() FROM system.tables WHERE database = ?", c.database).Scan(&count); err != nil {
		return false, queryErr("check_schema", err)
	}
	return count > 0, nil
}

// ExecuteDDL runs a raw DDL statement during schema setup.
func (c *Client) ExecuteDDL(ctx context.Context, ddl string) error {
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return queryErr("execute_ddl", err)
	}
	return nil
}

// observe times a read query for the API latency histogram.
func observe(query string) func() {
	start := time.Now()
	return func() {
		metrics.RecordQuery(query, time.Since(start))
	}
}
