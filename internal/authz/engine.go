// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package authz

import (
	"fmt"
	"strconv"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/identity"
)

// policyModel evaluates policies in insertion order; the first match
// decides. idx carries the index of the table rule a policy came from.
const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft, idx

[policy_effect]
e = priority(p.eft) || deny

[matchers]
m = (p.sub == "*" || r.sub == p.sub) && (p.act == "*" || r.act == p.act) && antMatch(r.obj, p.obj)
`

const anySubject = "*"

// NoRule is the RuleIndex of a decision no rule matched.
const NoRule = -1

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed bool

	// Kind is KindUnauthenticated or KindForbidden for a denial.
	Kind auth.Kind

	// RuleIndex is the index of the deciding rule, or NoRule.
	RuleIndex int
}

// Engine evaluates the access table.
type Engine struct {
	rules    []Rule
	enforcer *casbin.SyncedEnforcer
}

// NewEngine validates rules and compiles them. The engine keeps its own
// copy of the table.
func NewEngine(rules []Rule) (*Engine, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: empty rule table", ErrInvalidRule)
	}
	table := make([]Rule, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		r.Access.Roles = append([]identity.Role(nil), r.Access.Roles...)
		table[i] = r
	}

	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	enforcer.AddFunction("antMatch", func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return false, fmt.Errorf("antMatch: want 2 arguments, got %d", len(args))
		}
		p, _ := args[0].(string)
		pattern, _ := args[1].(string)
		return antMatch(p, pattern), nil
	})

	for i, r := range table {
		if err := addPolicies(enforcer, i, r); err != nil {
			return nil, err
		}
	}

	return &Engine{rules: table, enforcer: enforcer}, nil
}

// addPolicies emits one allow per admitted role, then a deny for everyone
// else.
func addPolicies(e *casbin.SyncedEnforcer, index int, r Rule) error {
	idx := strconv.Itoa(index)
	add := func(sub, eft string) error {
		if _, err := e.AddPolicy(sub, r.Pattern, r.Method, eft, idx); err != nil {
			return fmt.Errorf("failed to add policy for rule %d (%s): %w", index, r, err)
		}
		return nil
	}

	if r.Access.Public {
		return add(anySubject, "allow")
	}
	for _, role := range r.Access.Roles {
		if err := add(string(role), "allow"); err != nil {
			return err
		}
	}
	return add(anySubject, "deny")
}

// Rules returns a copy of the table.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Decide checks whether role may perform method on path. path is relative
// to the API base path.
func (e *Engine) Decide(method, path string, role identity.Role) (Decision, error) {
	start := time.Now()
	if role == "" {
		role = identity.RoleAnonymous
	}

	allowed, explain, err := e.enforcer.EnforceEx(string(role), cleanPath(path), method)
	if err != nil {
		return Decision{}, fmt.Errorf("enforcement failed: %w", err)
	}

	d := Decision{Allowed: allowed, RuleIndex: NoRule}
	if len(explain) == 5 {
		if idx, err := strconv.Atoi(explain[4]); err == nil {
			d.RuleIndex = idx
		}
	}
	if !allowed {
		d.Kind = auth.KindForbidden
		if !role.Authenticated() {
			d.Kind = auth.KindUnauthenticated
		}
	}

	recordDecision(role, d, time.Since(start))
	return d, nil
}

// Rule returns the rule at index i.
func (e *Engine) Rule(i int) (Rule, bool) {
	if i < 0 || i >= len(e.rules) {
		return Rule{}, false
	}
	return e.rules[i], true
}
