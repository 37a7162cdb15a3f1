// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts login requests by terminal state.
	// Labels:
	//   - outcome: "TOKENS_ISSUED", "REJECTED", "INVALID_REQUEST", "ERROR"
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Total number of credential login attempts",
		},
		[]string{"outcome"},
	)

	// LoginDuration measures credential verification plus token issuance.
	LoginDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auth_login_duration_seconds",
			Help:    "Duration of credential login handling in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// TokenVerifications counts access token checks on protected routes.
	// Labels:
	//   - result: "valid", "absent", or a failure kind
	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_verifications_total",
			Help: "Total number of access token verifications",
		},
		[]string{"result"},
	)

	// TokensIssued counts minted tokens.
	// Labels:
	//   - kind: "access", "refresh"
	//   - source: "login", "oauth2", "refresh"
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of tokens issued",
		},
		[]string{"kind", "source"},
	)

	// IdentityBridgeOutcomes counts external identity linking results.
	// Labels:
	//   - provider: provider name
	//   - outcome: "created", "linked", "failed"
	IdentityBridgeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_identity_bridge_total",
			Help: "Total number of external identity link operations",
		},
		[]string{"provider", "outcome"},
	)
)

func recordLogin(outcome LoginState, duration time.Duration) {
	LoginAttempts.WithLabelValues(string(outcome)).Inc()
	LoginDuration.Observe(duration.Seconds())
}

func recordVerification(result string) {
	TokenVerifications.WithLabelValues(result).Inc()
}
