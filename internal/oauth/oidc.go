// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/cafegate/internal/identity"
)

// OIDCConfig configures one OpenID Connect provider.
type OIDCConfig struct {
	// Name is the provider's route segment.
	Name string

	// IssuerURL is used for discovery and must match the ID token issuer.
	IssuerURL string

	ClientID     string
	ClientSecret string

	// RedirectURL is the callback route registered with the provider.
	RedirectURL string

	// Scopes must include "openid". Default: openid, profile, email
	Scopes []string

	// PKCE enables RFC 7636 code challenges.
	PKCE bool

	// HTTPClient is used for discovery and the code exchange.
	// Default: a client with a 30s timeout
	HTTPClient *http.Client
}

// SetDefaults fills unset optional fields.
func (c *OIDCConfig) SetDefaults() {
	if len(c.Scopes) == 0 {
		c.Scopes = []string{oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail}
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}

// Validate checks the required fields.
func (c *OIDCConfig) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("provider name is required")
	case c.IssuerURL == "":
		return fmt.Errorf("provider %s: issuer_url is required", c.Name)
	case c.ClientID == "":
		return fmt.Errorf("provider %s: client_id is required", c.Name)
	case c.RedirectURL == "":
		return fmt.Errorf("provider %s: redirect_url is required", c.Name)
	}
	if len(c.Scopes) > 0 && !slices.Contains(c.Scopes, oidc.ScopeOpenID) {
		return fmt.Errorf("provider %s: scopes must include %q", c.Name, oidc.ScopeOpenID)
	}
	return nil
}

type nonceKey struct{}

func nonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceKey{}).(string)
	return nonce
}

// OIDCProvider is a Provider backed by a zitadel relying party.
type OIDCProvider struct {
	name string
	pkce bool
	rp   rp.RelyingParty
}

var _ Provider = (*OIDCProvider)(nil)

// NewOIDCProvider runs discovery against the issuer and returns the
// provider. ctx bounds the discovery request.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// The code verifier travels in the flow's state store, so no PKCE
	// cookie handler is configured here. The expected nonce reaches the ID
	// token verifier through the exchange context.
	options := []rp.Option{
		rp.WithHTTPClient(cfg.HTTPClient),
		rp.WithVerifierOpts(rp.WithNonce(nonceFromContext)),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx,
		cfg.IssuerURL,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.RedirectURL,
		cfg.Scopes,
		options...,
	)
	if err != nil {
		return nil, fmt.Errorf("create relying party for %s: %w", cfg.Name, err)
	}
	return &OIDCProvider{name: cfg.Name, pkce: cfg.PKCE, rp: relyingParty}, nil
}

// Name implements Provider.
func (p *OIDCProvider) Name() string { return p.name }

// AuthURL implements Provider.
func (p *OIDCProvider) AuthURL(req AuthRequest) (string, error) {
	opts := []rp.AuthURLOpt{rp.AuthURLOpt(rp.WithURLParam("nonce", req.Nonce))}
	if p.pkce {
		if req.CodeVerifier == "" {
			return "", errors.New("pkce provider needs a code verifier")
		}
		opts = append(opts, rp.WithCodeChallenge(oidc.NewSHACodeChallenge(req.CodeVerifier)))
	}
	return rp.AuthURL(req.State, p.rp, opts...), nil
}

// Exchange implements Provider.
func (p *OIDCProvider) Exchange(ctx context.Context, code string, req AuthRequest) (identity.ExternalProfile, error) {
	var opts []rp.CodeExchangeOpt
	if p.pkce {
		opts = append(opts, rp.WithCodeVerifier(req.CodeVerifier))
	}
	ctx = context.WithValue(ctx, nonceKey{}, req.Nonce)
	tokens, err := rp.CodeExchange[*oidc.IDTokenClaims](ctx, code, p.rp, opts...)
	if err != nil {
		return identity.ExternalProfile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if tokens.IDTokenClaims == nil {
		return identity.ExternalProfile{}, ErrMissingClaims
	}
	if tokens.IDTokenClaims.Nonce != req.Nonce {
		return identity.ExternalProfile{}, ErrNonceMismatch
	}
	return profileFromClaims(p.name, tokens.IDTokenClaims)
}

// profileFromClaims maps ID token claims to an ExternalProfile. The display
// name falls back from name to preferred_username to email.
func profileFromClaims(provider string, claims *oidc.IDTokenClaims) (identity.ExternalProfile, error) {
	if claims.Subject == "" {
		return identity.ExternalProfile{}, ErrMissingClaims
	}
	display := claims.Name
	if display == "" {
		display = claims.PreferredUsername
	}
	if display == "" {
		display = claims.Email
	}
	return identity.ExternalProfile{
		Provider:    provider,
		Subject:     claims.Subject,
		Email:       claims.Email,
		DisplayName: display,
	}, nil
}
