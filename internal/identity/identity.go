// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

// Package identity defines who is calling: the Identity bound to a request,
// the closed set of roles, and the request-scoped accessors downstream
// handlers use to read it.
//
// An Identity is either absent (the caller is anonymous) or fully populated.
// It is attached to the request context at most once, by the token
// verification middleware or by a login flow, and is never stored in any
// process-wide variable.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the authorization role carried by an Identity.
type Role string

// Supported roles.
const (
	RoleAnonymous Role = "ANONYMOUS"
	RoleMember    Role = "MEMBER"
	RoleOwner     Role = "OWNER"
)

var (
	// ErrInvalidRole is returned for a role name outside the supported set.
	ErrInvalidRole = errors.New("invalid role")

	// ErrIncompleteIdentity is returned when an Identity would be missing
	// its subject or role.
	ErrIncompleteIdentity = errors.New("identity requires subject and role")
)

// ParseRole converts a role name into a Role. Matching is exact: "member"
// and "OWNER, MEMBER" are both rejected.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAnonymous, RoleMember, RoleOwner:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Authenticated reports whether r belongs to a signed-in caller.
func (r Role) Authenticated() bool {
	return r == RoleMember || r == RoleOwner
}

func (r Role) String() string { return string(r) }

// Identity is an authenticated caller.
type Identity struct {
	SubjectID   string
	Role        Role
	DisplayName string
}

// New builds an authenticated Identity. Anonymous callers are represented
// by the absence of an Identity, so RoleAnonymous is rejected here.
func New(subjectID string, role Role) (Identity, error) {
	if strings.TrimSpace(subjectID) == "" {
		return Identity{}, ErrIncompleteIdentity
	}
	if !role.Authenticated() {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return Identity{SubjectID: subjectID, Role: role}, nil
}

// WithDisplayName returns a copy of id carrying the given display name.
func (id Identity) WithDisplayName(name string) Identity {
	id.DisplayName = name
	return id
}

// ExternalProfile is a profile asserted by an external identity provider
// after it authenticated the user.
type ExternalProfile struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
}

// Validate checks the fields needed to link the profile to a local member.
func (p ExternalProfile) Validate() error {
	if p.Provider == "" || p.Subject == "" {
		return errors.New("external profile requires provider and subject")
	}
	return nil
}
