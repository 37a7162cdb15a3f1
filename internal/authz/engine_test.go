// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package authz

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/identity"
)

const (
	anon   = identity.RoleAnonymous
	member = identity.RoleMember
	owner  = identity.RoleOwner
)

func setupEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultRules())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func TestEngine_DefaultTable(t *testing.T) {
	e := setupEngine(t)

	tests := []struct {
		method string
		path   string
		role   identity.Role
		want   auth.Kind // empty means allowed
		rule   int
	}{
		// 1. sign-up is public for every caller
		{"POST", "/members/sign-up", anon, "", 0},
		{"POST", "/owners/sign-up", anon, "", 0},
		{"POST", "/owners/sign-up", member, "", 0},
		{"POST", "/members/sign-up", owner, "", 0},

		// 2. owner area
		{"GET", "/owners/cafes", member, auth.KindForbidden, 1},
		{"GET", "/owners/cafes", owner, "", 1},
		{"DELETE", "/owners/cafes/3", anon, auth.KindUnauthenticated, 1},
		{"GET", "/owners", owner, "", 1},

		// 3. bookmark toggle
		{"POST", "/cafes/7/bookmark", member, "", 2},
		{"POST", "/cafes/7/bookmark", owner, auth.KindForbidden, 2},
		{"POST", "/cafes/7/bookmark", anon, auth.KindUnauthenticated, 2},

		// 4. edit view
		{"GET", "/cafes/7/edit", owner, "", 3},
		{"GET", "/cafes/7/edit", member, auth.KindForbidden, 3},

		// 5. browsing
		{"GET", "/cafes/7", member, "", 4},
		{"GET", "/cafes/7", owner, "", 4},
		{"GET", "/cafes/7", anon, auth.KindUnauthenticated, 4},
		{"GET", "/cafes", member, "", 4},
		{"GET", "/cafes/7/reviews/2", member, "", 4},

		// 6. writes under cafes
		{"PATCH", "/cafes/7", owner, "", 5},
		{"PATCH", "/cafes/7", member, auth.KindForbidden, 5},
		{"POST", "/cafes", anon, auth.KindUnauthenticated, 5},

		// 7. single menu detail, both roles
		{"GET", "/menus/5", member, "", 6},
		{"GET", "/menus/5", owner, "", 6},
		{"GET", "/menus/5", anon, auth.KindUnauthenticated, 6},

		// 8. everything else under menus
		{"GET", "/menus/5/options", member, auth.KindForbidden, 7},
		{"GET", "/menus", member, auth.KindForbidden, 7},
		{"PUT", "/menus/5", owner, "", 7},

		// 9. members area
		{"GET", "/members/mypage", member, "", 8},
		{"PATCH", "/members/update", member, "", 8},
		{"PATCH", "/members/update", anon, auth.KindUnauthenticated, 8},
		{"GET", "/members/mypage", owner, auth.KindForbidden, 8},

		// 10. other reads are public
		{"GET", "/", anon, "", 9},
		{"GET", "/notices/1", anon, "", 9},
		{"GET", "/search", owner, "", 9},

		// 11. other writes need MEMBER
		{"POST", "/reviews", member, "", 10},
		{"POST", "/reviews", anon, auth.KindUnauthenticated, 10},
		{"DELETE", "/reviews/1", owner, auth.KindForbidden, 10},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path+" as "+string(tt.role), func(t *testing.T) {
			d, err := e.Decide(tt.method, tt.path, tt.role)
			if err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			wantAllowed := tt.want == ""
			if d.Allowed != wantAllowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, wantAllowed)
			}
			if d.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", d.Kind, tt.want)
			}
			if d.RuleIndex != tt.rule {
				t.Errorf("RuleIndex = %d, want %d", d.RuleIndex, tt.rule)
			}
		})
	}
}

func TestEngine_SignUpPublicForAllShapes(t *testing.T) {
	e := setupEngine(t)
	for _, path := range []string{"/members/sign-up", "/owners/sign-up", "/anything/sign-up", "/members//sign-up", "/members/sign-up/"} {
		for _, role := range []identity.Role{anon, member, owner} {
			d, err := e.Decide(http.MethodPost, path, role)
			if err != nil {
				t.Fatalf("Decide(%s): %v", path, err)
			}
			if !d.Allowed {
				t.Errorf("POST %s as %s denied with %s", path, role, d.Kind)
			}
		}
	}
}

func TestEngine_EmptyRoleIsAnonymous(t *testing.T) {
	e := setupEngine(t)
	d, err := e.Decide(http.MethodGet, "/members/mypage", "")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Kind != auth.KindUnauthenticated {
		t.Errorf("Kind = %q, want UNAUTHENTICATED", d.Kind)
	}
}

func TestEngine_NoMatchingRuleDenies(t *testing.T) {
	e, err := NewEngine([]Rule{{http.MethodGet, "/public/**", Public()}})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	d, err := e.Decide(http.MethodPost, "/public/x", member)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Allowed || d.RuleIndex != NoRule || d.Kind != auth.KindForbidden {
		t.Errorf("Decision = %+v, want forbidden with no rule", d)
	}
}

func TestEngine_FirstMatchWins(t *testing.T) {
	e, err := NewEngine([]Rule{
		{http.MethodGet, "/docs/private", Roles(owner)},
		{http.MethodGet, "/docs/**", Public()},
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	d, _ := e.Decide(http.MethodGet, "/docs/private", member)
	if d.Allowed || d.RuleIndex != 0 {
		t.Errorf("specific rule did not win: %+v", d)
	}
	d, _ = e.Decide(http.MethodGet, "/docs/public", anon)
	if !d.Allowed || d.RuleIndex != 1 {
		t.Errorf("general rule not applied: %+v", d)
	}
}

func TestNewEngine_RejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"unknown method", Rule{"FETCH", "/x", Public()}},
		{"lowercase method", Rule{"get", "/x", Public()}},
		{"relative pattern", Rule{http.MethodGet, "x/**", Public()}},
		{"bad pattern", Rule{http.MethodGet, "/x/[", Public()}},
		{"nobody", Rule{http.MethodGet, "/x", Access{}}},
		{"public with roles", Rule{http.MethodGet, "/x", Access{Public: true, Roles: []identity.Role{member}}}},
		{"anonymous role", Rule{http.MethodGet, "/x", Roles(anon)}},
		{"comma joined role", Rule{http.MethodGet, "/x", Roles(identity.Role("OWNER, MEMBER"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine([]Rule{tt.rule})
			if !errors.Is(err, ErrInvalidRule) {
				t.Errorf("NewEngine() error = %v, want ErrInvalidRule", err)
			}
		})
	}

	if _, err := NewEngine(nil); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("NewEngine(nil) error = %v", err)
	}
}

func TestEngine_RulesAreCopied(t *testing.T) {
	rules := DefaultRules()
	e, err := NewEngine(rules)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	rules[1].Access.Roles[0] = member

	d, _ := e.Decide(http.MethodGet, "/owners/x", member)
	if d.Allowed {
		t.Error("mutating the input table changed the engine")
	}

	got := e.Rules()
	got[0].Pattern = "/changed"
	if r, _ := e.Rule(0); r.Pattern != "/*/sign-up" {
		t.Errorf("Rules() exposed internal table: %s", r.Pattern)
	}
}

func TestEngine_ConcurrentDecide(t *testing.T) {
	e := setupEngine(t)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			role := member
			if i%2 == 0 {
				role = owner
			}
			d, err := e.Decide(http.MethodGet, "/owners/list", role)
			if err != nil {
				t.Errorf("Decide: %v", err)
				return
			}
			if d.Allowed != (role == owner) {
				t.Errorf("role %s: Allowed = %v", role, d.Allowed)
			}
		}(i)
	}
	wg.Wait()
}
