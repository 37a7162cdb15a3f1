// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package oauth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Redirects counts authorization redirects by provider.
	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_redirects_total",
			Help: "Total number of redirects to an OAuth2 provider",
		},
		[]string{"provider"},
	)

	// Callbacks counts provider callbacks.
	// Labels:
	//   - provider: provider name
	//   - outcome: "success", or the failure kind
	Callbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_callbacks_total",
			Help: "Total number of OAuth2 provider callbacks",
		},
		[]string{"provider", "outcome"},
	)
)
