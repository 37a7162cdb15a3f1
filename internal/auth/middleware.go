// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/token"
)

// errNotBearer is returned for an Authorization header with another scheme.
var errNotBearer = errors.New("authorization header is not a bearer token")

// Middleware verifies access tokens on protected routes.
type Middleware struct {
	codec    *token.Codec
	security *logging.SecurityLogger
}

// NewMiddleware creates the token verification middleware.
func NewMiddleware(codec *token.Codec) *Middleware {
	return &Middleware{codec: codec, security: logging.NewSecurityLogger()}
}

// bearerToken extracts the token from the Authorization header. ok is false
// when the header is absent.
func bearerToken(r *http.Request) (raw string, ok bool, err error) {
	header := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	if header == "" {
		return "", false, nil
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", true, errNotBearer
	}
	raw = strings.TrimSpace(rest)
	if raw == "" {
		return "", true, token.ErrMalformed
	}
	return raw, true, nil
}

// Verify binds the caller's Identity to the request context.
//
// No Authorization header: the request continues anonymous. A header that
// is present but does not carry a valid access token ends the request with
// MALFORMED_TOKEN, SIGNATURE_INVALID or EXPIRED_TOKEN.
func (m *Middleware) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, present, err := bearerToken(r)
		if !present {
			recordVerification("absent")
			next.ServeHTTP(w, r)
			return
		}

		var id identity.Identity
		if err == nil {
			id, err = m.codec.VerifyAccess(raw)
		}
		if err != nil {
			kind := KindOf(err)
			if kind == "" {
				kind = KindMalformedToken
			}
			recordVerification(string(kind))
			logging.Ctx(r.Context()).Debug().Err(err).Msg("access token rejected")
			m.security.LogTokenRejected(r.Context(), string(kind), r.URL.Path, ClientIP(r))
			WriteFailure(w, r, kind)
			return
		}

		ctx, err := identity.WithIdentity(r.Context(), id)
		if err != nil {
			// A second identity on the same request is a wiring error.
			logging.Ctx(r.Context()).Error().Err(err).Msg("identity already bound before token verification")
			WriteFailure(w, r, KindMalformedToken)
			return
		}
		ctx = logging.ContextWithSubjectID(ctx, id.SubjectID)

		recordVerification("valid")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
