// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Token    TokenConfig    `koanf:"token"`
	Security SecurityConfig `koanf:"security"`
	Store    StoreConfig    `koanf:"store"`
	OAuth    OAuthConfig    `koanf:"oauth"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// BasePath prefixes every API route and anchors the authorization rules.
	BasePath string `koanf:"base_path"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// TokenConfig holds signing and lifetime settings for issued tokens.
type TokenConfig struct {
	Secret     string        `koanf:"secret"`
	Issuer     string        `koanf:"issuer"`
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
}

// SecurityConfig holds CORS, rate limiting and password hashing settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	CORSMaxAge        int           `koanf:"cors_max_age"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	BcryptCost        int           `koanf:"bcrypt_cost"`
}

// StoreConfig selects the member store.
type StoreConfig struct {
	// Path is the badger directory. Empty keeps members in memory, which
	// loses them on restart.
	Path string `koanf:"path"`

	// Breaker wraps the store in a circuit breaker.
	Breaker bool `koanf:"breaker"`
}

// Persistent reports whether members are stored on disk.
func (s StoreConfig) Persistent() bool {
	return s.Path != ""
}

// OAuthConfig holds the OAuth2 login settings.
type OAuthConfig struct {
	StateTTL         time.Duration `koanf:"state_ttl"`
	ErrorRedirectURL string        `koanf:"error_redirect_url"`

	// OIDC is the provider configured through OIDC_* environment variables.
	OIDC ProviderConfig `koanf:"oidc"`

	// Providers are additional providers from the config file.
	Providers []ProviderConfig `koanf:"providers"`
}

// DefaultProviderName names the environment provider when OIDC_NAME is unset.
const DefaultProviderName = "oidc"

// ProviderConfig describes one OpenID Connect provider.
type ProviderConfig struct {
	Name         string   `koanf:"name"`
	IssuerURL    string   `koanf:"issuer_url"`
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	RedirectURL  string   `koanf:"redirect_url"`
	Scopes       []string `koanf:"scopes"`
	PKCE         bool     `koanf:"pkce"`
}

// Configured reports whether any field is set.
func (p ProviderConfig) Configured() bool {
	return p.Name != "" || p.IssuerURL != "" || p.ClientID != ""
}

// EnabledProviders returns the environment provider, when configured,
// followed by the file providers.
func (o OAuthConfig) EnabledProviders() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(o.Providers)+1)
	if o.OIDC.Configured() {
		p := o.OIDC
		if p.Name == "" {
			p.Name = DefaultProviderName
		}
		out = append(out, p)
	}
	return append(out, o.Providers...)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
