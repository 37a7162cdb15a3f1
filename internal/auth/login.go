// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/response"
	"github.com/tomtom215/cafegate/internal/validation"
)

// LoginState is a state of the credential login state machine.
//
//	RECEIVED -> VERIFYING_CREDENTIALS -> TOKENS_ISSUED | REJECTED
type LoginState string

// Login states.
const (
	StateReceived             LoginState = "RECEIVED"
	StateVerifyingCredentials LoginState = "VERIFYING_CREDENTIALS"
	StateTokensIssued         LoginState = "TOKENS_ISSUED"
	StateRejected             LoginState = "REJECTED"
)

// maxLoginBodyBytes caps the login payload.
const maxLoginBodyBytes = 4 << 10

// LoginRequest is the credential payload of the login route.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginAuthenticator handles the login route.
type LoginAuthenticator struct {
	verifier CredentialVerifier
	issuer   *TokenIssuer
	security *logging.SecurityLogger
}

// NewLoginAuthenticator creates a LoginAuthenticator.
func NewLoginAuthenticator(verifier CredentialVerifier, issuer *TokenIssuer) *LoginAuthenticator {
	return &LoginAuthenticator{
		verifier: verifier,
		issuer:   issuer,
		security: logging.NewSecurityLogger(),
	}
}

func transition(ctx context.Context, from, to LoginState) {
	logging.Ctx(ctx).Debug().Str("from", string(from)).Str("to", string(to)).Msg("login state transition")
}

// Authenticate runs one credential check and returns the issued tokens.
// Every failure is a *Failure of KindCredentialRejected; the wrapped error
// is for logs only.
func (a *LoginAuthenticator) Authenticate(ctx context.Context, username, password string) (*TokenPair, error) {
	transition(ctx, StateReceived, StateVerifyingCredentials)

	id, err := a.verifier.VerifyCredentials(ctx, username, password)
	if err != nil {
		transition(ctx, StateVerifyingCredentials, StateRejected)
		return nil, Fail(KindCredentialRejected, err)
	}

	pair, err := a.issuer.IssuePair(id, SourceLogin)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("token issuance failed after successful credential check")
		transition(ctx, StateVerifyingCredentials, StateRejected)
		return nil, Fail(KindCredentialRejected, err)
	}

	transition(ctx, StateVerifyingCredentials, StateTokensIssued)
	return pair, nil
}

// ServeHTTP implements the login route.
func (a *LoginAuthenticator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req LoginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		recordLogin("INVALID_REQUEST", time.Since(start))
		response.BadRequest(w, r, "request body must be a JSON object with username and password")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		recordLogin("INVALID_REQUEST", time.Since(start))
		response.ValidationError(w, r, verr.Fields())
		return
	}

	pair, err := a.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		recordLogin(StateRejected, time.Since(start))
		a.security.LogLoginFailure(ctx, req.Username, "local", ClientIP(r), err.Error())
		WriteFailure(w, r, KindCredentialRejected)
		return
	}

	recordLogin(StateTokensIssued, time.Since(start))
	a.security.LogLoginSuccess(ctx, pair.Identity.SubjectID, req.Username, "local", ClientIP(r))
	pair.WriteHeaders(w)
	response.Success(w, r, pair.Session())
}

// ClientIP returns the client address without port. chi's RealIP
// middleware has already applied proxy headers to RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
