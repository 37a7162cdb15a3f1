// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package authz

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tomtom215/cafegate/internal/identity"
)

// AnyMethod matches every HTTP method.
const AnyMethod = "*"

// ErrInvalidRule is returned for a rule that fails validation.
var ErrInvalidRule = errors.New("invalid authorization rule")

var knownMethods = map[string]bool{
	AnyMethod:          true,
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Access is who a rule admits: everyone, or callers holding one of Roles.
type Access struct {
	Public bool
	Roles  []identity.Role
}

// Public admits every caller, signed in or not.
func Public() Access { return Access{Public: true} }

// Roles admits callers holding any of roles.
func Roles(roles ...identity.Role) Access { return Access{Roles: roles} }

// Admits reports whether role satisfies a.
func (a Access) Admits(role identity.Role) bool {
	if a.Public {
		return true
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Access) String() string {
	if a.Public {
		return "public"
	}
	names := make([]string, len(a.Roles))
	for i, r := range a.Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}

// Rule is one row of the access table.
type Rule struct {
	Method  string
	Pattern string
	Access  Access
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s %s", r.Method, r.Pattern, r.Access)
}

// Validate checks the method, the pattern syntax and the roles.
func (r Rule) Validate() error {
	if !knownMethods[r.Method] {
		return fmt.Errorf("%w: unknown method %q", ErrInvalidRule, r.Method)
	}
	if !strings.HasPrefix(r.Pattern, "/") {
		return fmt.Errorf("%w: pattern %q must start with /", ErrInvalidRule, r.Pattern)
	}
	if !doublestar.ValidatePattern(r.Pattern) {
		return fmt.Errorf("%w: malformed pattern %q", ErrInvalidRule, r.Pattern)
	}
	if r.Access.Public {
		if len(r.Access.Roles) > 0 {
			return fmt.Errorf("%w: %s is public and lists roles", ErrInvalidRule, r)
		}
		return nil
	}
	if len(r.Access.Roles) == 0 {
		return fmt.Errorf("%w: %s admits nobody", ErrInvalidRule, r)
	}
	for _, role := range r.Access.Roles {
		if !role.Authenticated() {
			return fmt.Errorf("%w: %s names role %q", ErrInvalidRule, r, role)
		}
	}
	return nil
}

// Matches reports whether the rule's method and pattern match a request.
func (r Rule) Matches(method, path string) bool {
	if r.Method != AnyMethod && r.Method != method {
		return false
	}
	return antMatch(cleanPath(path), r.Pattern)
}

// DefaultRules returns the production access table.
func DefaultRules() []Rule {
	member, owner := identity.RoleMember, identity.RoleOwner
	return []Rule{
		{http.MethodPost, "/*/sign-up", Public()},
		{AnyMethod, "/owners/**", Roles(owner)},
		{http.MethodPost, "/cafes/*/bookmark", Roles(member)},
		{http.MethodGet, "/cafes/*/edit", Roles(owner)},
		{http.MethodGet, "/cafes/**", Roles(member, owner)},
		{AnyMethod, "/cafes/**", Roles(owner)},
		{http.MethodGet, "/menus/*", Roles(member, owner)},
		{AnyMethod, "/menus/**", Roles(owner)},
		{AnyMethod, "/members/**", Roles(member)},
		{http.MethodGet, "/**", Public()},
		{AnyMethod, "/**", Roles(member)},
	}
}

// cleanPath normalizes a request path: duplicate and trailing slashes and
// dot segments are removed.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

// antMatch matches a cleaned path against an ant-style pattern. A trailing
// "/**" also matches the bare prefix.
func antMatch(p, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		if p == prefix || (prefix == "" && p == "/") {
			return true
		}
	}
	matched, err := doublestar.Match(pattern, p)
	return err == nil && matched
}
