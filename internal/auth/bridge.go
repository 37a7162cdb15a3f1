// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"context"
	"fmt"

	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/member"
)

// MemberLinker is the part of the member store the bridge needs. The
// implementation must create at most one member per provider link, even
// under concurrent calls.
type MemberLinker interface {
	FindOrCreateByProvider(ctx context.Context, link member.ProviderLink, template member.Member) (*member.Member, bool, error)
}

// IdentityBridge turns a provider-authenticated profile into a local
// member and a token pair.
type IdentityBridge struct {
	members  MemberLinker
	issuer   *TokenIssuer
	security *logging.SecurityLogger
}

// NewIdentityBridge creates an IdentityBridge.
func NewIdentityBridge(members MemberLinker, issuer *TokenIssuer) *IdentityBridge {
	return &IdentityBridge{
		members:  members,
		issuer:   issuer,
		security: logging.NewSecurityLogger(),
	}
}

// Complete links profile to a local member, creating one with role MEMBER
// on first login, and issues tokens for it. Tokens are only issued after
// the store call has returned a committed record. Every failure is a
// *Failure of KindIdentityBridgeFailure.
func (b *IdentityBridge) Complete(ctx context.Context, profile identity.ExternalProfile) (*TokenPair, error) {
	if err := profile.Validate(); err != nil {
		IdentityBridgeOutcomes.WithLabelValues(profile.Provider, "failed").Inc()
		return nil, Fail(KindIdentityBridgeFailure, err)
	}

	link := member.ProviderLink{Provider: profile.Provider, Subject: profile.Subject}
	template := member.Member{
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Role:        identity.RoleMember,
	}

	m, created, err := b.members.FindOrCreateByProvider(ctx, link, template)
	if err != nil {
		IdentityBridgeOutcomes.WithLabelValues(profile.Provider, "failed").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("provider", profile.Provider).Msg("member store failed during identity bridging")
		return nil, Fail(KindIdentityBridgeFailure, fmt.Errorf("link member: %w", err))
	}

	id, err := m.Identity()
	if err != nil {
		IdentityBridgeOutcomes.WithLabelValues(profile.Provider, "failed").Inc()
		return nil, Fail(KindIdentityBridgeFailure, err)
	}

	pair, err := b.issuer.IssuePair(id, SourceOAuth2)
	if err != nil {
		IdentityBridgeOutcomes.WithLabelValues(profile.Provider, "failed").Inc()
		return nil, Fail(KindIdentityBridgeFailure, err)
	}

	outcome := "linked"
	if created {
		outcome = "created"
	}
	IdentityBridgeOutcomes.WithLabelValues(profile.Provider, outcome).Inc()
	b.security.LogMemberLinked(ctx, id.SubjectID, profile.Provider, created)
	return pair, nil
}
