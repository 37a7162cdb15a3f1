// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"context"

	"github.com/tomtom215/cafegate/internal/identity"
)

// CredentialVerifier checks a username and password.
//
// Implementations return the caller's identity, or an error for an unknown
// user, a wrong password or an unreachable backend. The login flow treats
// every error the same way.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, username, password string) (identity.Identity, error)
}

// CredentialVerifierFunc adapts a function to CredentialVerifier.
type CredentialVerifierFunc func(ctx context.Context, username, password string) (identity.Identity, error)

// VerifyCredentials calls f.
func (f CredentialVerifierFunc) VerifyCredentials(ctx context.Context, username, password string) (identity.Identity, error) {
	return f(ctx, username, password)
}
