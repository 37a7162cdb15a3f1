// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/member"
	"github.com/tomtom215/cafegate/internal/token"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"failure", Fail(KindForbidden, nil), KindForbidden},
		{"wrapped failure", fmt.Errorf("outer: %w", Fail(KindIdentityBridgeFailure, errors.New("x"))), KindIdentityBridgeFailure},
		{"expired", fmt.Errorf("verify: %w", token.ErrExpired), KindExpiredToken},
		{"signature", token.ErrSignatureInvalid, KindSignatureInvalid},
		{"malformed", token.ErrMalformed, KindMalformedToken},
		{"no identity", identity.ErrNoIdentity, KindUnauthenticated},
		{"bad credentials", fmt.Errorf("%w: password mismatch", member.ErrInvalidCredentials), KindCredentialRejected},
		{"other", errors.New("disk full"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKind_Status(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindMalformedToken, http.StatusUnauthorized},
		{KindSignatureInvalid, http.StatusUnauthorized},
		{KindExpiredToken, http.StatusUnauthorized},
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindCredentialRejected, http.StatusUnauthorized},
		{KindIdentityBridgeFailure, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Status(); got != tt.want {
				t.Errorf("Status() = %d, want %d", got, tt.want)
			}
			if tt.kind.Message() == "" {
				t.Error("Message() is empty")
			}
		})
	}
}

func TestFailure_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Fail(KindCredentialRejected, cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is(failure, cause) = false")
	}
	if got := Fail(KindForbidden, nil).Error(); got != "FORBIDDEN" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWriteFailure(t *testing.T) {
	tests := []struct {
		kind          Kind
		wantChallenge string
	}{
		{KindExpiredToken, `Bearer error="invalid_token"`},
		{KindUnauthenticated, "Bearer"},
		{KindForbidden, ""},
		{KindCredentialRejected, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteFailure(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.kind)
			assertFailure(t, rec, tt.kind)
			if got := rec.Header().Get("WWW-Authenticate"); got != tt.wantChallenge {
				t.Errorf("WWW-Authenticate = %q, want %q", got, tt.wantChallenge)
			}
		})
	}
}
