// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/member"
	"github.com/tomtom215/cafegate/internal/response"
	"github.com/tomtom215/cafegate/internal/token"
)

// MemberLookup resolves a subject to its current member record.
type MemberLookup interface {
	FindByID(ctx context.Context, id string) (*member.Member, error)
}

// RefreshHandler exchanges a refresh token for a new token pair.
//
// Refresh tokens carry no role, so the role is read from the member store
// on every exchange and a role change takes effect at the next refresh. The
// presented refresh token stays valid until it expires.
type RefreshHandler struct {
	codec    *token.Codec
	issuer   *TokenIssuer
	members  MemberLookup
	security *logging.SecurityLogger
}

// NewRefreshHandler creates a RefreshHandler.
func NewRefreshHandler(codec *token.Codec, issuer *TokenIssuer, members MemberLookup) *RefreshHandler {
	return &RefreshHandler{
		codec:    codec,
		issuer:   issuer,
		members:  members,
		security: logging.NewSecurityLogger(),
	}
}

// Exchange verifies raw and issues a fresh pair for its subject.
func (h *RefreshHandler) Exchange(ctx context.Context, raw string) (*TokenPair, error) {
	if raw == "" {
		return nil, Fail(KindUnauthenticated, nil)
	}
	subject, err := h.codec.VerifyRefresh(raw)
	if err != nil {
		return nil, err
	}
	m, err := h.members.FindByID(ctx, subject)
	if err != nil {
		return nil, Fail(KindUnauthenticated, err)
	}
	id, err := m.Identity()
	if err != nil {
		return nil, Fail(KindUnauthenticated, err)
	}
	pair, err := h.issuer.IssuePair(id, SourceRefresh)
	if err != nil {
		return nil, Fail(KindUnauthenticated, err)
	}
	return pair, nil
}

// ServeHTTP implements the refresh route. The refresh token is read from
// the Refresh request header.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := strings.TrimSpace(r.Header.Get(HeaderRefresh))

	pair, err := h.Exchange(ctx, raw)
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = KindUnauthenticated
		}
		h.security.LogTokenRefresh(ctx, "", false, err.Error())
		WriteFailure(w, r, kind)
		return
	}

	h.security.LogTokenRefresh(ctx, pair.Identity.SubjectID, true, "")
	pair.WriteHeaders(w)
	response.Success(w, r, pair.Session())
}
