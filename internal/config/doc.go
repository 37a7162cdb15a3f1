// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

/*
Package config provides layered configuration for the gateway.

# Configuration Sources

Sources are applied in order, later sources overriding earlier ones:
  - Built-in defaults (koanf structs provider)
  - An optional YAML file: CONFIG_PATH, else config.yaml, config.yml,
    /etc/cafegate/config.yaml
  - Environment variables (mapped names, see below)

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, SHUTDOWN_TIMEOUT, BASE_PATH

Tokens:
  - JWT_SECRET (required, at least 32 bytes)
  - JWT_ISSUER, ACCESS_TOKEN_TTL, REFRESH_TOKEN_TTL

Security:
  - CORS_ORIGINS (comma separated), CORS_MAX_AGE
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - BCRYPT_COST

Member store:
  - STORE_PATH (empty keeps members in memory), STORE_BREAKER

OAuth2:
  - OAUTH_STATE_TTL, OAUTH_ERROR_REDIRECT_URL
  - OIDC_NAME, OIDC_ISSUER_URL, OIDC_CLIENT_ID, OIDC_CLIENT_SECRET,
    OIDC_REDIRECT_URL, OIDC_SCOPES, OIDC_PKCE

Further providers are listed under oauth.providers in the YAML file.

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
*/
package config
