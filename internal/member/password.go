// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package member

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/cafegate/internal/identity"
)

// ErrInvalidCredentials is the single failure returned for any rejected
// login, whatever the cause.
var ErrInvalidCredentials = errors.New("invalid credentials")

// MaxPasswordBytes is bcrypt's input limit.
const MaxPasswordBytes = 72

// Hasher hashes and checks passwords with bcrypt.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher creates a Hasher. A cost outside bcrypt's range is replaced by
// bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", fmt.Errorf("password exceeds %d bytes", MaxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// burn performs a comparison against a fixed hash so that a miss on the
// username costs the same as a wrong password.
func (h *Hasher) burn(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("cafegate-dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}

// PasswordVerifier checks username/password pairs against the member store.
type PasswordVerifier struct {
	store  Store
	hasher *Hasher
}

// NewPasswordVerifier creates a verifier over store.
func NewPasswordVerifier(store Store, hasher *Hasher) *PasswordVerifier {
	return &PasswordVerifier{store: store, hasher: hasher}
}

// VerifyCredentials returns the member's identity when password matches.
// Every rejection is ErrInvalidCredentials; the wrapped detail is for logs
// only.
func (v *PasswordVerifier) VerifyCredentials(ctx context.Context, username, password string) (identity.Identity, error) {
	m, err := v.store.FindByUsername(ctx, username)
	if err != nil {
		v.hasher.burn(password)
		return identity.Identity{}, fmt.Errorf("%w: lookup: %v", ErrInvalidCredentials, err)
	}
	if m.PasswordHash == "" {
		v.hasher.burn(password)
		return identity.Identity{}, fmt.Errorf("%w: account has no password", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		return identity.Identity{}, fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
	}
	id, err := m.Identity()
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return id, nil
}
