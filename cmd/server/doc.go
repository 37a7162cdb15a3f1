// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

/*
Package main is the entry point for the Cafegate server.

Cafegate authenticates callers with signed, self-contained tokens and
authorizes every API request against an ordered rule table. Tokens are issued
by the username/password login route, by the refresh route, and by OAuth2
logins at configured OpenID Connect providers.

# Process Layout

	RootSupervisor ("cafegate")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── oauth-state-sweeper (memory state store)
	│   └── badger-gc (STORE_PATH set)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: koanf with defaults, optional YAML, environment
 2. Logging: zerolog global logger
 3. Member store: badger (STORE_PATH) or memory, behind a circuit breaker
 4. Token codec and issuer
 5. Authentication: login, refresh, token verification middleware
 6. OAuth2: OIDC relying parties, state store, identity bridge
 7. Authorization: rule table compiled into the policy engine
 8. HTTP router and supervisor tree

# Signals

SIGINT and SIGTERM cancel the supervisor context. The HTTP server drains
for SHUTDOWN_TIMEOUT before the process exits.
*/
package main
