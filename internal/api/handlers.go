// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/funnel-video/funnel/internal/clickhouse"
	"github.com/funnel-video/funnel/internal/logging"
)

const (
	defaultLimit = 50
	maxLimit     = 100

	cacheShort = "public, max-age=30"
	cacheLong  = "public, max-age=60"
	cacheNone  = "no-store"
)

// Handler holds the storage backend behind the read endpoints.
type Handler struct {
	storage Storage
}

// NewHandler creates a handler over the given storage.
func NewHandler(storage Storage) *Handler {
	return &Handler{storage: storage}
}

// errorBody is the uniform JSON error shape.
type errorBody struct {
	Error string `json:"error"`
}

// statsBody is the /api/stats response.
type statsBody struct {
	TotalEvents uint64 `json:"total_events"`
	TotalVideos uint64 `json:"total_videos"`
}

func writeJSON(w http.ResponseWriter, status int, cacheControl string, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, cacheNone, errorBody{Error: message})
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// clampLimit parses the limit query parameter, applying the default
// and the hard ceiling.
func clampLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, cacheNone, map[string]string{"status": "ok"})
}

// VideoStats serves GET /api/videos/{id}/stats.
func (h *Handler) VideoStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stats, err := h.storage.GetVideoStats(r.Context(), id)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to get video stats")
		writeInternalError(w)
		return
	}
	if stats == nil {
		writeError(w, http.StatusNotFound, "Video not found")
		return
	}
	writeJSON(w, http.StatusOK, cacheShort, stats)
}

// ListVideos serves GET /api/videos. sort=trending or sort=popular
// reads the trending view; anything else lists by recency, projected
// into the trending shape with a zero score so both orders share one
// response type.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(r)
	sort := r.URL.Query().Get("sort")

	var (
		videos []clickhouse.TrendingVideo
		err    error
	)
	switch sort {
	case "popular", "trending":
		videos, err = h.storage.GetTrendingVideos(r.Context(), limit)
	default:
		var kind *uint16
		if rawKind := r.URL.Query().Get("kind"); rawKind != "" {
			if k, parseErr := strconv.ParseUint(rawKind, 10, 16); parseErr == nil {
				k16 := uint16(k)
				kind = &k16
			}
		}

		var recent []clickhouse.VideoStats
		recent, err = h.storage.GetRecentVideos(r.Context(), kind, limit)
		if err == nil {
			videos = make([]clickhouse.TrendingVideo, len(recent))
			for i, s := range recent {
				videos[i] = clickhouse.TrendingFromStats(s)
			}
		}
	}

	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to list videos")
		writeInternalError(w)
		return
	}
	if videos == nil {
		videos = []clickhouse.TrendingVideo{}
	}
	writeJSON(w, http.StatusOK, cacheLong, videos)
}

// UserVideos serves GET /api/users/{pubkey}/videos.
func (h *Handler) UserVideos(w http.ResponseWriter, r *http.Request) {
	pubkey := chi.URLParam(r, "pubkey")
	limit := clampLimit(r)

	videos, err := h.storage.GetVideosByAuthor(r.Context(), pubkey, limit)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to get user videos")
		writeInternalError(w)
		return
	}
	if videos == nil {
		videos = []clickhouse.VideoStats{}
	}
	writeJSON(w, http.StatusOK, cacheLong, videos)
}

// Search serves GET /api/search. tag= searches the hashtag index;
// q= searches titles; one of the two is required.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(r)
	query := r.URL.Query()

	if tag := query.Get("tag"); tag != "" {
		videos, err := h.storage.SearchByHashtag(r.Context(), tag, limit)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to search by hashtag")
			writeInternalError(w)
			return
		}
		if videos == nil {
			videos = []clickhouse.VideoHashtag{}
		}
		writeJSON(w, http.StatusOK, cacheLong, videos)
		return
	}

	if q := query.Get("q"); q != "" {
		videos, err := h.storage.SearchByText(r.Context(), q, limit)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("query", q).Msg("Failed to search by text")
			writeInternalError(w)
			return
		}
		if videos == nil {
			videos = []clickhouse.VideoStats{}
		}
		writeJSON(w, http.StatusOK, cacheLong, videos)
		return
	}

	writeError(w, http.StatusBadRequest, "Search requires 'tag' or 'q' parameter")
}

// Stats serves GET /api/stats. A failing count degrades to zero so a
// partially unhealthy store still answers.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	events, err := h.storage.GetEventCount(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to get event count")
		events = 0
	}
	videos, err := h.storage.GetVideoCount(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to get video count")
		videos = 0
	}

	writeJSON(w, http.StatusOK, cacheLong, statsBody{
		TotalEvents: events,
		TotalVideos: videos,
	})
}
