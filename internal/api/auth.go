// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthConfig holds the expected bearer token for the protected routes.
type AuthConfig struct {
	token string
}

// NewAuthConfig returns nil for an empty token, which disables
// authentication entirely.
func NewAuthConfig(token string) *AuthConfig {
	if token == "" {
		return nil
	}
	return &AuthConfig{token: token}
}

// Validate compares a presented token against the configured one in
// constant time. The length check short-circuits, which is fine: the
// expected token's length is not a secret.
func (a *AuthConfig) Validate(token string) bool {
	if len(token) != len(a.token) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) == 1
}

// extractBearerToken pulls the token out of an Authorization header,
// or returns false when the header is absent or not Bearer-shaped.
func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	return token, true
}

// RequireAuth rejects requests without a valid bearer token.
func (a *AuthConfig) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}
		if !a.Validate(token) {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r)
	}
}
