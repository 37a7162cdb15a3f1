// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/cafegate/internal/logging"
)

const (
	// minSecretLength matches the token codec's HMAC key floor.
	minSecretLength = 32

	minBcryptCost = 10
	maxBcryptCost = 16

	minRateLimitRequests = 1
	maxRateLimitRequests = 10000
	minRateLimitWindow   = time.Second
)


var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateToken(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateOAuth(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	base := c.Server.BasePath
	if base == "" || base[0] != '/' || (len(base) > 1 && strings.HasSuffix(base, "/")) {
		return fmt.Errorf("BASE_PATH must start with / and not end with /, got %q", base)
	}
	return nil
}

func (c *Config) validateToken() error {
	if len(c.Token.Secret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.Token.Issuer == "" {
		return fmt.Errorf("JWT_ISSUER must not be empty")
	}
	if c.Token.AccessTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%s) must be longer than ACCESS_TOKEN_TTL (%s)",
			c.Token.RefreshTTL, c.Token.AccessTTL)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}
	for _, origin := range c.Security.CORSOrigins {
		// Credentials are allowed, so a wildcard would hand tokens to any site.
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS=* is not allowed with credentialed requests")
		}
		if err := validateOrigin(origin); err != nil {
			return err
		}
	}
	if c.Security.CORSMaxAge < 0 {
		return fmt.Errorf("CORS_MAX_AGE must not be negative")
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
		}
		if c.Security.RateLimitWindow < minRateLimitWindow {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be at least %s", minRateLimitWindow)
		}
	}

	if c.Security.BcryptCost < minBcryptCost || c.Security.BcryptCost > maxBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", minBcryptCost, maxBcryptCost)
	}
	return nil
}

func (c *Config) validateOAuth() error {
	if c.OAuth.StateTTL <= 0 {
		return fmt.Errorf("OAUTH_STATE_TTL must be positive")
	}
	if c.OAuth.ErrorRedirectURL != "" {
		if err := validateHTTPURL(c.OAuth.ErrorRedirectURL, "OAUTH_ERROR_REDIRECT_URL"); err != nil {
			return err
		}
	}

	seen := make(map[string]bool)
	for i, p := range c.OAuth.EnabledProviders() {
		if err := p.validate(); err != nil {
			return fmt.Errorf("oauth provider %d: %w", i, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("oauth provider %q is configured twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

func (p ProviderConfig) validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(p.Name, "/?#") {
		return fmt.Errorf("name %q must be a single path segment", p.Name)
	}
	if err := validateHTTPURL(p.IssuerURL, "issuer_url"); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	if p.ClientID == "" {
		return fmt.Errorf("%s: client_id is required", p.Name)
	}
	if p.ClientSecret == "" && !p.PKCE {
		return fmt.Errorf("%s: client_secret is required unless pkce is enabled", p.Name)
	}
	if err := validateHTTPURL(p.RedirectURL, "redirect_url"); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic, disabled")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
