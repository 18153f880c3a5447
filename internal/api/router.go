// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/funnel-video/funnel/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so it can be mounted with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// noStore wraps a handler so its responses are never cached.
func noStore(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", cacheNone)
		next.ServeHTTP(w, r)
	}
}

// NewRouter assembles the full route tree. auth may be nil, in which
// case the /api routes are public. rateLimit is requests per minute
// per client IP; 0 disables limiting.
func NewRouter(h *Handler, auth *AuthConfig, rateLimit int) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Monitoring endpoints stay public and uncached.
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", noStore(promhttp.Handler()))

	r.Route("/api", func(r chi.Router) {
		if rateLimit > 0 {
			r.Use(httprate.LimitByIP(rateLimit, time.Minute))
		}
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		if auth != nil {
			r.Use(chiMiddleware(auth.RequireAuth))
		}

		r.Get("/videos", h.ListVideos)
		r.Get("/videos/{id}/stats", h.VideoStats)
		r.Get("/users/{pubkey}/videos", h.UserVideos)
		r.Get("/search", h.Search)
		r.Get("/stats", h.Stats)
	})

	return r
}
