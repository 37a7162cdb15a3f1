// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/metrics"
	"github.com/tomtom215/cafegate/internal/response"
)

// DefaultCORSOrigins are the browser front ends allowed to call the API.
var DefaultCORSOrigins = []string{
	"https://fe-dev-cafein.vercel.app",
	"https://cafein-3780c.web.app",
	"http://localhost:5173",
	"https://cafein34.vercel.app",
}

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	// Rate limiting of the credential routes (login, refresh)
	AuthRateLimitRequests int
	AuthRateLimitWindow   time.Duration
	AuthRateLimitDisabled bool
}

// DefaultChiMiddlewareConfig returns the production configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: DefaultCORSOrigins,
		CORSMaxAge:         3600,

		AuthRateLimitRequests: 10,
		AuthRateLimitWindow:   time.Minute,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	// All methods and request headers are allowed from the listed origins.
	// Token headers are exposed so browser clients can read them.
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: config.CORSAllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   auth.ExposedHeaders,
		AllowCredentials: true,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{config: config, cors: corsHandler}
}

// CORS returns the go-chi/cors middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitAuth limits credential routes per client IP. endpoint labels
// the rejection metric.
func (m *ChiMiddleware) RateLimitAuth(endpoint string) func(http.Handler) http.Handler {
	if m.config.AuthRateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.config.AuthRateLimitRequests,
		m.config.AuthRateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(endpoint).Inc()
			response.Fail(w, r, http.StatusTooManyRequests, response.CodeTooManyRequests, "too many requests, try again later")
		}),
	)
}
