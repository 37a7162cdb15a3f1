// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package authz

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/cafegate/internal/identity"
)

var (
	// DecisionsTotal counts authorization decisions.
	// Labels:
	//   - role: caller role
	//   - rule: index of the deciding rule, "none" when nothing matched
	//   - decision: "allow", "UNAUTHENTICATED", "FORBIDDEN"
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"role", "rule", "decision"},
	)

	// DecisionDuration tracks the latency of authorization decisions.
	DecisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "authz_decision_duration_seconds",
			Help: "Duration of authorization decisions in seconds",
			// Buckets optimized for authz checks (microseconds to milliseconds)
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)
)

func recordDecision(role identity.Role, d Decision, duration time.Duration) {
	rule := "none"
	if d.RuleIndex != NoRule {
		rule = strconv.Itoa(d.RuleIndex)
	}
	decision := "allow"
	if !d.Allowed {
		decision = string(d.Kind)
	}
	DecisionsTotal.WithLabelValues(string(role), rule, decision).Inc()
	DecisionDuration.Observe(duration.Seconds())
}
