// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/response"
)

// ProviderParam is the chi URL parameter holding the provider name.
const ProviderParam = "provider"

// Completer finishes a login for a provider-authenticated profile.
type Completer interface {
	Complete(ctx context.Context, profile identity.ExternalProfile) (*auth.TokenPair, error)
}

// FlowConfig configures a Flow.
type FlowConfig struct {
	// StateTTL bounds the redirect-to-callback time. Default: DefaultStateTTL
	StateTTL time.Duration

	// ErrorRedirectURL, when set, receives the browser after a failed
	// callback with the failure kind in the "error" query parameter.
	// When empty, failures are answered with a 401 JSON envelope.
	ErrorRedirectURL string

	// Now overrides the clock. Default: time.Now
	Now func() time.Time
}

// Flow serves the provider redirect and callback routes.
type Flow struct {
	providers map[string]Provider
	states    StateStore
	completer Completer
	cfg       FlowConfig
	security  *logging.SecurityLogger
}

// NewFlow creates a Flow. Provider names must be unique.
func NewFlow(providers []Provider, states StateStore, completer Completer, cfg FlowConfig) (*Flow, error) {
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ErrorRedirectURL != "" {
		if _, err := url.Parse(cfg.ErrorRedirectURL); err != nil {
			return nil, fmt.Errorf("invalid error redirect url: %w", err)
		}
	}

	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if _, dup := byName[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate oauth provider %q", p.Name())
		}
		byName[p.Name()] = p
	}

	return &Flow{
		providers: byName,
		states:    states,
		completer: completer,
		cfg:       cfg,
		security:  logging.NewSecurityLogger(),
	}, nil
}

// Providers returns the configured provider names.
func (f *Flow) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	return names
}

func (f *Flow) provider(r *http.Request) (Provider, error) {
	name := chi.URLParam(r, ProviderParam)
	p, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Start redirects the browser to the provider's authorization endpoint.
func (f *Flow) Start(w http.ResponseWriter, r *http.Request) {
	p, err := f.provider(r)
	if err != nil {
		response.NotFound(w, r, "unknown login provider")
		return
	}

	now := f.cfg.Now()
	key := uuid.NewString()
	state := State{
		Provider:  p.Name(),
		Nonce:     uuid.NewString(),
		Verifier:  newCodeVerifier(),
		CreatedAt: now,
		ExpiresAt: now.Add(f.cfg.StateTTL),
	}

	authURL, err := p.AuthURL(state.request(key))
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	if err := f.states.Save(r.Context(), key, state); err != nil {
		if errors.Is(err, ErrStateStoreFull) {
			logging.Ctx(r.Context()).Warn().Str("provider", p.Name()).Msg("oauth state store full")
			response.Unavailable(w, r, "too many pending logins, try again later")
			return
		}
		response.InternalError(w, r, fmt.Errorf("store oauth state: %w", err))
		return
	}

	Redirects.WithLabelValues(p.Name()).Inc()
	logging.Ctx(r.Context()).Debug().Str("provider", p.Name()).Msg("redirecting to oauth provider")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the login after the provider redirects back.
func (f *Flow) Callback(w http.ResponseWriter, r *http.Request) {
	p, err := f.provider(r)
	if err != nil {
		response.NotFound(w, r, "unknown login provider")
		return
	}

	ctx := r.Context()
	pair, err := f.callback(ctx, p, r.URL.Query())
	if err != nil {
		kind := auth.KindOf(err)
		if kind == "" {
			kind = auth.KindCredentialRejected
		}
		Callbacks.WithLabelValues(p.Name(), string(kind)).Inc()
		f.security.LogLoginFailure(ctx, "", p.Name(), auth.ClientIP(r), err.Error())
		f.fail(w, r, kind)
		return
	}

	Callbacks.WithLabelValues(p.Name(), "success").Inc()
	f.security.LogLoginSuccess(ctx, pair.Identity.SubjectID, pair.Identity.DisplayName, p.Name(), auth.ClientIP(r))
	pair.WriteHeaders(w)
	response.Success(w, r, pair.Session())
}

// callback runs the callback steps. Provider-side failures are
// CREDENTIAL_REJECTED; bridge failures keep their own kind.
func (f *Flow) callback(ctx context.Context, p Provider, query url.Values) (*auth.TokenPair, error) {
	if reason := query.Get("error"); reason != "" {
		return nil, auth.Fail(auth.KindCredentialRejected, fmt.Errorf("provider returned error %q", reason))
	}
	code, key := query.Get("code"), query.Get("state")
	if code == "" || key == "" {
		return nil, auth.Fail(auth.KindCredentialRejected, errors.New("callback without code or state"))
	}

	state, err := f.states.Consume(ctx, key)
	if err != nil {
		return nil, auth.Fail(auth.KindCredentialRejected, err)
	}
	if state.Provider != p.Name() {
		return nil, auth.Fail(auth.KindCredentialRejected, fmt.Errorf("state issued for provider %q", state.Provider))
	}

	profile, err := p.Exchange(ctx, code, state.request(key))
	if err != nil {
		return nil, auth.Fail(auth.KindCredentialRejected, err)
	}
	profile.Provider = p.Name()

	return f.completer.Complete(ctx, profile)
}

func (f *Flow) fail(w http.ResponseWriter, r *http.Request, kind auth.Kind) {
	if f.cfg.ErrorRedirectURL == "" {
		auth.WriteFailure(w, r, kind)
		return
	}
	target, _ := url.Parse(f.cfg.ErrorRedirectURL)
	query := target.Query()
	query.Set("error", string(kind))
	target.RawQuery = query.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
