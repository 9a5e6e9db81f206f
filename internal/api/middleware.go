// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/custodian/internal/logging"
	"github.com/tomtom215/custodian/internal/metrics"
)

// PermissionRead guards every query surface: the trail holds the most
// sensitive data in the system, so reading it is itself a privilege.
const PermissionRead = "audit:read"

// PermissionWrite guards the record endpoints.
const PermissionWrite = "audit:write"

type contextKey string

const (
	ctxKeySubject     contextKey = "subject"
	ctxKeyPermissions contextKey = "permissions"
)

// Claims is the JWT payload the API accepts.
type Claims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Authenticator verifies bearer tokens and stores the caller's identity
// and permissions on the request context.
type Authenticator struct {
	secret   []byte
	disabled bool
}

// NewAuthenticator creates an Authenticator. With disabled true every
// request passes with full permissions (development only).
func NewAuthenticator(secret string, disabled bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), disabled: disabled}
}

// Middleware authenticates the request's bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.disabled {
			ctx := context.WithValue(r.Context(), ctxKeySubject, "dev")
			ctx = context.WithValue(ctx, ctxKeyPermissions, []string{PermissionRead, PermissionWrite})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing bearer token", nil)
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return a.secret, nil
			})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid token", err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySubject, claims.Subject)
		ctx = context.WithValue(ctx, ctxKeyPermissions, claims.Permissions)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects requests whose token lacks the permission.
// Denials are logged at warn level with the caller and path; a denied
// read of the audit trail is itself a signal worth keeping.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			perms, _ := r.Context().Value(ctxKeyPermissions).([]string)
			for _, p := range perms {
				if p == permission {
					next.ServeHTTP(w, r)
					return
				}
			}

			subject, _ := r.Context().Value(ctxKeySubject).(string)
			logging.Warn().
				Str("subject", sanitizeLogValue(subject)).
				Str("permission", permission).
				Str("path", sanitizeLogValue(r.URL.Path)).
				Msg("permission denied")
			respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR",
				fmt.Sprintf("%s permission required", permission), nil)
		})
	}
}

// Subject returns the authenticated caller from the request context.
func Subject(r *http.Request) string {
	subject, _ := r.Context().Value(ctxKeySubject).(string)
	return subject
}

// RequestLogger logs one structured line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Info().
			Str("method", r.Method).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// MetricsMiddleware records request latency per route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
