// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

// Package token issues and verifies the signed, self-contained session
// tokens used by every authenticated request.
//
// Tokens are HS256 JWTs. Nothing about an issued token is stored on the
// server: validity is a function of the signature and the expiry only, so a
// token cannot be revoked before it expires.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/cafegate/internal/identity"
)

// MinSecretLength is the minimum accepted length of the signing secret in bytes.
const MinSecretLength = 32

// Kind distinguishes access tokens from refresh tokens.
type Kind string

// Token kinds.
const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Verification failures. Callers classify with errors.Is.
var (
	ErrMalformed        = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
)

// Claims is the claim set carried by every token.
type Claims struct {
	Role string `json:"role,omitempty"`
	Kind Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Token is an issued, signed token together with the claims it carries.
type Token struct {
	Value     string
	Kind      Kind
	ID        string
	SubjectID string
	Role      identity.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config configures a Codec.
type Config struct {
	// Secret is the HMAC signing key, at least MinSecretLength bytes.
	Secret []byte

	// Issuer is written to and required on every token.
	Issuer string

	// AccessTTL is the lifetime of access tokens.
	AccessTTL time.Duration

	// RefreshTTL is the lifetime of refresh tokens. Must exceed AccessTTL.
	RefreshTTL time.Duration

	// Now overrides the clock. Default: time.Now
	Now func() time.Time
}

// Codec signs and verifies tokens. It is safe for concurrent use; all of its
// state is read-only after construction.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewCodec creates a Codec from cfg.
//
// The secret is copied so later mutation of the caller's slice has no
// effect on issued or verified tokens.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(cfg.Secret))
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("access token TTL must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, fmt.Errorf("refresh token TTL (%s) must be longer than access token TTL (%s)", cfg.RefreshTTL, cfg.AccessTTL)
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("token issuer is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	c := &Codec{
		secret:     secret,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        now,
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(cfg.Issuer),
	)
	return c, nil
}

// TTL returns the lifetime of tokens of the given kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue mints a token of the given kind for subjectID.
//
// Access tokens carry the role; refresh tokens carry only the subject and
// timestamps. The claim set is limited to subject, role, issuer, token id,
// kind and the two timestamps; no other data is ever embedded.
func (c *Codec) Issue(subjectID string, role identity.Role, kind Kind) (*Token, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("issue token: subject is required")
	}
	if !kind.valid() {
		return nil, fmt.Errorf("issue token: unknown kind %q", kind)
	}
	if kind == KindAccess && !role.Authenticated() {
		return nil, fmt.Errorf("issue token: %w: %q", identity.ErrInvalidRole, role)
	}

	now := c.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(c.TTL(kind)))

	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    c.issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}
	if kind == KindAccess {
		claims.Role = string(role)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	t := &Token{
		Value:     signed,
		Kind:      kind,
		ID:        claims.ID,
		SubjectID: subjectID,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}
	if kind == KindAccess {
		t.Role = role
	}
	return t, nil
}

// Verify checks a token of either kind and returns its claims.
//
// Checks run in a fixed order and the first failure wins:
//
//  1. structure and claim shape: ErrMalformed
//  2. expiry: ErrExpired, reported even when the signature is also bad
//  3. signature: ErrSignatureInvalid (HMAC compared in constant time,
//     algorithm pinned to HS256 so "none" and substitutions fail here)
//  4. issuer: ErrMalformed
func (c *Codec) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	unverified := &Claims{}
	if _, _, err := c.parser.ParseUnverified(raw, unverified); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if unverified.Subject == "" || unverified.ExpiresAt == nil || !unverified.Kind.valid() {
		return nil, fmt.Errorf("%w: missing required claims", ErrMalformed)
	}
	if !c.now().Before(unverified.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// VerifyAccess verifies an access token and returns the Identity it carries.
// A valid refresh token is rejected as malformed.
func (c *Codec) VerifyAccess(raw string) (identity.Identity, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return identity.Identity{}, err
	}
	if claims.Kind != KindAccess {
		return identity.Identity{}, fmt.Errorf("%w: %s token where access token expected", ErrMalformed, claims.Kind)
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	id, err := identity.New(claims.Subject, role)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return id, nil
}

// VerifyRefresh verifies a refresh token and returns its subject.
// A valid access token is rejected as malformed.
func (c *Codec) VerifyRefresh(raw string) (string, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return "", err
	}
	if claims.Kind != KindRefresh {
		return "", fmt.Errorf("%w: %s token where refresh token expected", ErrMalformed, claims.Kind)
	}
	return claims.Subject, nil
}
