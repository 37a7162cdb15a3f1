// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package authz

import (
	"net/http"
	"strings"

	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/response"
)

// Middleware enforces the access table on requests under a base path.
type Middleware struct {
	engine   *Engine
	basePath string
	security *logging.SecurityLogger
}

// NewMiddleware creates the authorization middleware. basePath ("/api")
// is stripped from request paths before rules are evaluated.
func NewMiddleware(engine *Engine, basePath string) *Middleware {
	return &Middleware{
		engine:   engine,
		basePath: strings.TrimSuffix(basePath, "/"),
		security: logging.NewSecurityLogger(),
	}
}

// relative strips the base path at a segment boundary.
func (m *Middleware) relative(p string) string {
	if m.basePath == "" {
		return p
	}
	rest, ok := strings.CutPrefix(p, m.basePath)
	if !ok {
		return p
	}
	if rest == "" {
		return "/"
	}
	if rest[0] != '/' {
		return p
	}
	return rest
}

// Authorize must run after token verification, so the identity it reads
// is final for the request.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		role := identity.RoleOf(ctx)
		path := m.relative(r.URL.Path)

		d, err := m.engine.Decide(r.Method, path, role)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("authorization error")
			response.InternalError(w, r, err)
			return
		}
		if !d.Allowed {
			subject, _ := identity.CurrentSubjectID(ctx)
			reason := "no matching rule"
			if rule, ok := m.engine.Rule(d.RuleIndex); ok {
				reason = rule.String()
			}
			m.security.LogAccessDenied(ctx, subject, string(role), r.Method, path, reason)
			auth.WriteFailure(w, r, d.Kind)
			return
		}
		next.ServeHTTP(w, r)
	})
}
