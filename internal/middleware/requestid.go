// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

// Package middleware holds the HTTP middleware shared by the API
// routes: request correlation IDs and Prometheus instrumentation.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/funnel-video/funnel/internal/logging"
)

// RequestID tags each request with a correlation ID, honouring one
// supplied by an upstream proxy. The ID is echoed in the X-Request-ID
// response header and placed in the request context for log lines.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)

		next(w, r.WithContext(ctx))
	}
}
