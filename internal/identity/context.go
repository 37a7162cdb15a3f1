// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package identity

import (
	"context"
	"errors"
)

type contextKey struct{}

var (
	// ErrNoIdentity is returned when a handler asks for the caller but the
	// request is anonymous.
	ErrNoIdentity = errors.New("no authenticated identity on request")

	// ErrIdentityAlreadyBound is returned on a second bind for the same request.
	ErrIdentityAlreadyBound = errors.New("identity already bound to request")
)

// WithIdentity binds id to ctx. A context chain carries at most one
// identity; binding again fails instead of overwriting.
func WithIdentity(ctx context.Context, id Identity) (context.Context, error) {
	if _, ok := FromContext(ctx); ok {
		return ctx, ErrIdentityAlreadyBound
	}
	if id.SubjectID == "" || !id.Role.Authenticated() {
		return ctx, ErrIncompleteIdentity
	}
	return context.WithValue(ctx, contextKey{}, id), nil
}

// FromContext returns the identity bound to ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// CurrentSubjectID returns the subject id of the caller on this request.
func CurrentSubjectID(ctx context.Context) (string, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return id.SubjectID, nil
}

// RoleOf returns the caller's role, RoleAnonymous when no identity is bound.
func RoleOf(ctx context.Context) Role {
	if id, ok := FromContext(ctx); ok {
		return id.Role
	}
	return RoleAnonymous
}
