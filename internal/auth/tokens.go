// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/token"
)

// Header names of the token contract.
const (
	HeaderAuthorization = "Authorization"
	HeaderRefresh       = "Refresh"
	HeaderRole          = "Role"

	bearerScheme = "Bearer"
)

// ExposedHeaders lists the response headers browsers must be allowed to read.
var ExposedHeaders = []string{HeaderAuthorization, HeaderRefresh, HeaderRole}

// Token sources, used as metric labels.
const (
	SourceLogin   = "login"
	SourceOAuth2  = "oauth2"
	SourceRefresh = "refresh"
)

// TokenPair is the result of one issuance event.
type TokenPair struct {
	Identity identity.Identity
	Access   *token.Token
	Refresh  *token.Token
}

// Session is the JSON body returned next to the token headers. It never
// contains the tokens themselves.
type Session struct {
	SubjectID        string    `json:"subject_id"`
	Role             string    `json:"role"`
	DisplayName      string    `json:"display_name,omitempty"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenIssuer mints access and refresh tokens for an identity.
type TokenIssuer struct {
	codec *token.Codec
}

// NewTokenIssuer creates an issuer over codec.
func NewTokenIssuer(codec *token.Codec) *TokenIssuer {
	return &TokenIssuer{codec: codec}
}

// IssuePair mints an access token and a refresh token for id.
func (i *TokenIssuer) IssuePair(id identity.Identity, source string) (*TokenPair, error) {
	access, err := i.codec.Issue(id.SubjectID, id.Role, token.KindAccess)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := i.codec.Issue(id.SubjectID, id.Role, token.KindRefresh)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	TokensIssued.WithLabelValues(string(token.KindAccess), source).Inc()
	TokensIssued.WithLabelValues(string(token.KindRefresh), source).Inc()
	return &TokenPair{Identity: id, Access: access, Refresh: refresh}, nil
}

// Session returns the response body for p.
func (p *TokenPair) Session() Session {
	return Session{
		SubjectID:        p.Identity.SubjectID,
		Role:             string(p.Identity.Role),
		DisplayName:      p.Identity.DisplayName,
		AccessExpiresAt:  p.Access.ExpiresAt,
		RefreshExpiresAt: p.Refresh.ExpiresAt,
	}
}

// WriteHeaders attaches the pair to the response headers.
func (p *TokenPair) WriteHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set(HeaderAuthorization, bearerScheme+" "+p.Access.Value)
	h.Set(HeaderRefresh, p.Refresh.Value)
	h.Set(HeaderRole, string(p.Identity.Role))
	h.Set("Cache-Control", "no-store")
}
