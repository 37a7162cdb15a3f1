// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package api

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/authz"
	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/middleware"
	"github.com/tomtom215/cafegate/internal/oauth"
	"github.com/tomtom215/cafegate/internal/response"
)

// DefaultBasePath prefixes every API route.
const DefaultBasePath = "/api"

// Deps are the components the router serves.
type Deps struct {
	Login      *auth.LoginAuthenticator
	Refresh    *auth.RefreshHandler
	Verifier   *auth.Middleware
	Authorizer *authz.Middleware
	Handler    *Handler

	// OAuth is optional; without it the OAuth2 routes are not mounted.
	OAuth *oauth.Flow
}

func (d Deps) validate() error {
	switch {
	case d.Login == nil:
		return errors.New("router: login authenticator is required")
	case d.Refresh == nil:
		return errors.New("router: refresh handler is required")
	case d.Verifier == nil:
		return errors.New("router: token verifier is required")
	case d.Authorizer == nil:
		return errors.New("router: authorizer is required")
	case d.Handler == nil:
		return errors.New("router: handler is required")
	}
	return nil
}

// Router builds the HTTP handler.
type Router struct {
	basePath string
	mw       *ChiMiddleware
	deps     Deps
	pipeline *Pipeline
}

// NewRouter assembles the security pipeline and checks the dependencies.
func NewRouter(basePath string, mwConfig *ChiMiddlewareConfig, deps Deps) (*Router, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	basePath = "/" + strings.Trim(basePath, "/")

	mw := NewChiMiddleware(mwConfig)
	pipeline, err := NewPipeline(
		Stage{Name: StageCORS, Middleware: mw.CORS()},
		Stage{Name: StageVerify, Middleware: deps.Verifier.Verify},
		Stage{Name: StageAuthorize, Middleware: deps.Authorizer.Authorize},
	)
	if err != nil {
		return nil, err
	}
	return &Router{basePath: basePath, mw: mw, deps: deps, pipeline: pipeline}, nil
}

// route joins rel onto the base path. A root base path yields "/rel".
func (router *Router) route(rel string) string {
	return path.Join(router.basePath, rel)
}

// Pipeline returns the security pipeline.
func (router *Router) Pipeline() *Pipeline { return router.pipeline }

// SetupChi configures all routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	base := router.basePath

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.pipeline.Edge()...) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Operations
	// ========================
	r.Get("/healthz", router.deps.Handler.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Identity-establishing routes
	// ========================
	// Registered as static routes on the root so they take precedence over
	// the guarded base mount below.
	r.With(router.mw.RateLimitAuth("login")).Post(router.route("users/log-in"), router.deps.Login.ServeHTTP)
	r.With(router.mw.RateLimitAuth("refresh")).Post(router.route("users/refresh"), router.deps.Refresh.ServeHTTP)
	if flow := router.deps.OAuth; flow != nil {
		r.Group(func(r chi.Router) {
			r.Use(router.mw.RateLimitAuth("oauth2"))
			r.Get(router.route("oauth2/authorization/{"+oauth.ProviderParam+"}"), flow.Start)
			r.Get(router.route("login/oauth2/code/{"+oauth.ProviderParam+"}"), flow.Callback)
		})
	}

	// ========================
	// Guarded API
	// ========================
	// The guard wraps the whole subrouter, so unknown paths and methods are
	// authorized before they get 404 or 405.
	r.Route(base, func(r chi.Router) {
		r.Use(router.pipeline.Guard()...)

		r.Post("/members/sign-up", router.deps.Handler.SignUp(identity.RoleMember))
		r.Post("/owners/sign-up", router.deps.Handler.SignUp(identity.RoleOwner))
		r.Get("/members/mypage", router.deps.Handler.MyPage)
		r.Patch("/members/update", router.deps.Handler.UpdateMember)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			response.NotFound(w, r, "no such resource")
		})
	})

	return r
}
