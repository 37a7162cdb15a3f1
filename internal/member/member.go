// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

// Package member is the durable record of local accounts: members who sign
// up with a password and members linked to an external identity provider.
//
// Store implementations must make FindOrCreateByProvider atomic for a given
// (provider, subject) pair. Two concurrent first logins for the same
// external identity must end with exactly one member record.
package member

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tomtom215/cafegate/internal/identity"
)

// Store errors.
var (
	ErrNotFound  = errors.New("member not found")
	ErrDuplicate = errors.New("member already exists")
	ErrInvalid   = errors.New("invalid member")
)

// Member is a local account.
type Member struct {
	ID              string        `json:"id"`
	Username        string        `json:"username,omitempty"`
	Email           string        `json:"email,omitempty"`
	DisplayName     string        `json:"display_name,omitempty"`
	PasswordHash    string        `json:"password_hash,omitempty"`
	Role            identity.Role `json:"role"`
	Provider        string        `json:"provider,omitempty"`
	ProviderSubject string        `json:"provider_subject,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ProviderLink identifies an account at an external identity provider.
type ProviderLink struct {
	Provider string
	Subject  string
}

func (l ProviderLink) valid() bool {
	return l.Provider != "" && l.Subject != ""
}

// Identity returns the authenticated identity of m.
func (m *Member) Identity() (identity.Identity, error) {
	id, err := identity.New(m.ID, m.Role)
	if err != nil {
		return identity.Identity{}, err
	}
	return id.WithDisplayName(m.DisplayName), nil
}

// Mutation changes the editable fields of a member inside Update.
type Mutation func(m *Member) error

// Store persists members.
type Store interface {
	FindByID(ctx context.Context, id string) (*Member, error)
	FindByUsername(ctx context.Context, username string) (*Member, error)

	// Create stores a new local member and assigns its ID. It fails with
	// ErrDuplicate when the username is taken.
	Create(ctx context.Context, m *Member) (*Member, error)

	// Update applies fn to the stored member. Identity fields (ID,
	// username, provider link, role, creation time) are not editable.
	Update(ctx context.Context, id string, fn Mutation) (*Member, error)

	// FindOrCreateByProvider returns the member linked to link, creating it
	// from template when none exists. created reports which happened.
	FindOrCreateByProvider(ctx context.Context, link ProviderLink, template Member) (m *Member, created bool, err error)
}

// NormalizeUsername canonicalizes a username for storage and lookup.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// prepareLocal validates a member for Create and fills defaults.
func prepareLocal(m *Member, now time.Time) (*Member, error) {
	if m == nil {
		return nil, ErrInvalid
	}
	out := *m
	out.Username = NormalizeUsername(out.Username)
	if out.Username == "" {
		return nil, errors.Join(ErrInvalid, errors.New("username is required"))
	}
	if out.Role == "" {
		out.Role = identity.RoleMember
	}
	if !out.Role.Authenticated() {
		return nil, errors.Join(ErrInvalid, identity.ErrInvalidRole)
	}
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

// prepareLinked builds the record for a first login through link.
func prepareLinked(link ProviderLink, template Member, now time.Time) (*Member, error) {
	if !link.valid() {
		return nil, errors.Join(ErrInvalid, errors.New("provider link requires provider and subject"))
	}
	out := template
	out.Username = ""
	out.PasswordHash = ""
	out.Provider = link.Provider
	out.ProviderSubject = link.Subject
	if out.Role == "" {
		out.Role = identity.RoleMember
	}
	if !out.Role.Authenticated() {
		return nil, errors.Join(ErrInvalid, identity.ErrInvalidRole)
	}
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

// applyMutation runs fn on a copy of current and restores the fields that
// may not change.
func applyMutation(current *Member, fn Mutation, now time.Time) (*Member, error) {
	next := *current
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Username = current.Username
	next.Provider = current.Provider
	next.ProviderSubject = current.ProviderSubject
	next.Role = current.Role
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = now
	return &next, nil
}

// Result labels used for store metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicate):
		return "conflict"
	default:
		return "error"
	}
}
