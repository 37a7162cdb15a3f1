// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/member"
	"github.com/tomtom215/cafegate/internal/response"
	"github.com/tomtom215/cafegate/internal/token"
)

// Kind is a machine-readable authentication or authorization failure.
type Kind string

// Failure kinds.
const (
	KindMalformedToken        Kind = "MALFORMED_TOKEN"
	KindSignatureInvalid      Kind = "SIGNATURE_INVALID"
	KindExpiredToken          Kind = "EXPIRED_TOKEN"
	KindUnauthenticated       Kind = "UNAUTHENTICATED"
	KindForbidden             Kind = "FORBIDDEN"
	KindCredentialRejected    Kind = "CREDENTIAL_REJECTED"
	KindIdentityBridgeFailure Kind = "IDENTITY_BRIDGE_FAILURE"
)

// Status returns the HTTP status for k.
func (k Kind) Status() int {
	if k == KindForbidden {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

// Message returns the user-facing message for k.
func (k Kind) Message() string {
	switch k {
	case KindMalformedToken, KindSignatureInvalid:
		return "invalid token, please re-authenticate"
	case KindExpiredToken:
		return "token expired, please re-authenticate"
	case KindForbidden:
		return "insufficient privilege"
	case KindCredentialRejected:
		return "invalid username or password"
	case KindIdentityBridgeFailure:
		return "external login failed"
	default:
		return "authentication required"
	}
}

// tokenFailure reports whether k is about a presented token.
func (k Kind) tokenFailure() bool {
	return k == KindMalformedToken || k == KindSignatureInvalid || k == KindExpiredToken
}

// Failure is an error carrying its Kind.
type Failure struct {
	Kind Kind
	Err  error
}

// Fail wraps err as a failure of the given kind.
func Fail(kind Kind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf classifies err. It returns an empty Kind for errors that are not
// authentication failures.
func KindOf(err error) Kind {
	var f *Failure
	switch {
	case err == nil:
		return ""
	case errors.As(err, &f):
		return f.Kind
	case errors.Is(err, token.ErrExpired):
		return KindExpiredToken
	case errors.Is(err, token.ErrSignatureInvalid):
		return KindSignatureInvalid
	case errors.Is(err, token.ErrMalformed):
		return KindMalformedToken
	case errors.Is(err, identity.ErrNoIdentity):
		return KindUnauthenticated
	case errors.Is(err, member.ErrInvalidCredentials):
		return KindCredentialRejected
	default:
		return ""
	}
}

// WriteFailure writes the error envelope for kind.
func WriteFailure(w http.ResponseWriter, r *http.Request, kind Kind) {
	if kind.tokenFailure() {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	} else if kind == KindUnauthenticated {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	response.Fail(w, r, kind.Status(), string(kind), kind.Message())
}
