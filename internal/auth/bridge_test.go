// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/member"
)

type failingLinker struct{ err error }

func (f failingLinker) FindOrCreateByProvider(context.Context, member.ProviderLink, member.Member) (*member.Member, bool, error) {
	return nil, false, f.err
}

func TestIdentityBridge_FirstAndRepeatLogin(t *testing.T) {
	ctx := context.Background()
	store := member.NewMemoryStore()
	codec := newTestCodec(t, newTestClock())
	b := NewIdentityBridge(store, NewTokenIssuer(codec))

	profile := identity.ExternalProfile{Provider: "google", Subject: "g-123", Email: "e@example.com", DisplayName: "Erin"}

	first, err := b.Complete(ctx, profile)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if first.Identity.Role != identity.RoleMember {
		t.Errorf("new member role = %s, want MEMBER", first.Identity.Role)
	}
	if first.Identity.DisplayName != "Erin" {
		t.Errorf("display name = %q", first.Identity.DisplayName)
	}

	second, err := b.Complete(ctx, profile)
	if err != nil {
		t.Fatalf("Complete (repeat): %v", err)
	}
	if second.Identity.SubjectID != first.Identity.SubjectID {
		t.Errorf("repeat login subject = %q, want %q", second.Identity.SubjectID, first.Identity.SubjectID)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d members, want 1", store.Len())
	}

	id, err := codec.VerifyAccess(second.Access.Value)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if id.SubjectID != first.Identity.SubjectID {
		t.Errorf("token subject = %q", id.SubjectID)
	}
}

func TestIdentityBridge_Failures(t *testing.T) {
	codec := newTestCodec(t, newTestClock())

	tests := []struct {
		name    string
		linker  MemberLinker
		profile identity.ExternalProfile
	}{
		{"missing subject", member.NewMemoryStore(), identity.ExternalProfile{Provider: "google"}},
		{"missing provider", member.NewMemoryStore(), identity.ExternalProfile{Subject: "x"}},
		{"store unavailable", failingLinker{err: member.ErrUnavailable}, identity.ExternalProfile{Provider: "google", Subject: "x"}},
		{"store write failed", failingLinker{err: errors.New("disk full")}, identity.ExternalProfile{Provider: "google", Subject: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewIdentityBridge(tt.linker, NewTokenIssuer(codec))
			pair, err := b.Complete(context.Background(), tt.profile)
			if pair != nil {
				t.Error("tokens issued despite failure")
			}
			if KindOf(err) != KindIdentityBridgeFailure {
				t.Errorf("KindOf = %q, want IDENTITY_BRIDGE_FAILURE", KindOf(err))
			}
		})
	}
}

func TestIdentityBridge_ConcurrentFirstLogin(t *testing.T) {
	ctx := context.Background()
	store := member.NewMemoryStore()
	b := NewIdentityBridge(store, NewTokenIssuer(newTestCodec(t, newTestClock())))
	profile := identity.ExternalProfile{Provider: "kakao", Subject: "k-1"}

	const callers = 16
	subjects := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pair, err := b.Complete(ctx, profile)
			if err != nil {
				t.Errorf("Complete: %v", err)
				return
			}
			subjects[i] = pair.Identity.SubjectID
		}(i)
	}
	wg.Wait()

	if store.Len() != 1 {
		t.Fatalf("store has %d members, want 1", store.Len())
	}
	for i, s := range subjects {
		if s != subjects[0] {
			t.Errorf("caller %d got subject %q, want %q", i, s, subjects[0])
		}
	}
}
