// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

// Package oauth implements the OAuth2 authorization-code login flow.
//
// A login starts at the provider redirect route, which stores a one-time
// state and sends the browser to the provider. The provider calls back with
// an authorization code; the flow exchanges it, maps the ID token to an
// identity.ExternalProfile and hands the profile to the identity bridge,
// which answers with the same token contract as a password login.
package oauth

import (
	"context"
	"errors"

	"github.com/tomtom215/cafegate/internal/identity"
)

// Errors returned by providers and the flow.
var (
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrExchangeFailed  = errors.New("authorization code exchange failed")
	ErrNonceMismatch   = errors.New("id token nonce mismatch")
	ErrMissingClaims   = errors.New("id token lacks required claims")
)

// AuthRequest holds the per-login secrets shared by the redirect and the
// callback.
type AuthRequest struct {
	State string
	Nonce string

	// CodeVerifier is the PKCE verifier. Providers without PKCE ignore it.
	CodeVerifier string
}

// Provider is an external identity provider.
type Provider interface {
	// Name is the path segment identifying the provider, e.g. "google".
	Name() string

	// AuthURL returns the provider's authorization URL for req.
	AuthURL(req AuthRequest) (string, error)

	// Exchange trades an authorization code for the authenticated profile.
	// The ID token nonce must equal req.Nonce.
	Exchange(ctx context.Context, code string, req AuthRequest) (identity.ExternalProfile, error)
}
