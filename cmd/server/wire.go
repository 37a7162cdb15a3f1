// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/config"
	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/member"
	"github.com/tomtom215/cafegate/internal/oauth"
	"github.com/tomtom215/cafegate/internal/supervisor"
	"github.com/tomtom215/cafegate/internal/supervisor/services"
)

const (
	stateSweepInterval = time.Minute
	badgerGCInterval   = 10 * time.Minute
)

// storage is the member store plus what owns its lifetime.
type storage struct {
	members member.Store
	db      *badger.DB // nil for the memory store
	badger  *member.BadgerStore
	breaker *member.BreakerStore
}

func initStore(cfg *config.Config, tree *supervisor.SupervisorTree) (*storage, error) {
	s := &storage{}

	if cfg.Store.Persistent() {
		db, err := member.OpenBadger(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		bs, err := member.NewBadgerStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.db, s.badger, s.members = db, bs, bs

		tree.AddMaintenanceService(services.NewPeriodicService("badger-gc", badgerGCInterval,
			func(ctx context.Context) (int, error) { return member.CollectGarbage(ctx, db) }))
		logging.Info().Str("path", cfg.Store.Path).Msg("Member store: badger")
	} else {
		s.members = member.NewMemoryStore()
		logging.Warn().Msg("Member store: memory (STORE_PATH unset, members are lost on restart)")
	}

	if cfg.Store.Breaker {
		s.breaker = member.NewBreakerStore(s.members, member.DefaultBreakerConfig())
		s.members = s.breaker
	}
	return s, nil
}

// health reports the store as unhealthy while its breaker is open or the
// database is closed.
func (s *storage) health(context.Context) error {
	if s.db != nil && s.db.IsClosed() {
		return errors.New("member database closed")
	}
	if s.breaker != nil && s.breaker.State() == gobreaker.StateOpen {
		return member.ErrUnavailable
	}
	return nil
}

func (s *storage) Close() {
	if s.badger != nil {
		if err := s.badger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error releasing member id sequence")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing member database")
		}
	}
}

// initOAuth builds the OAuth2 flow. It returns nil when no provider is
// configured. Provider discovery runs now, so an unreachable issuer fails
// startup.
func initOAuth(ctx context.Context, cfg *config.Config, store *storage, issuer *auth.TokenIssuer, tree *supervisor.SupervisorTree) (*oauth.Flow, error) {
	provCfgs := cfg.OAuth.EnabledProviders()
	if len(provCfgs) == 0 {
		logging.Info().Msg("OAuth2 login disabled (no providers configured)")
		return nil, nil
	}

	providers := make([]oauth.Provider, 0, len(provCfgs))
	for _, pc := range provCfgs {
		p, err := oauth.NewOIDCProvider(ctx, oauth.OIDCConfig{
			Name:         pc.Name,
			IssuerURL:    pc.IssuerURL,
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURL,
			Scopes:       pc.Scopes,
			PKCE:         pc.PKCE,
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		providers = append(providers, p)
		logging.Info().Str("provider", pc.Name).Str("issuer", pc.IssuerURL).Bool("pkce", pc.PKCE).Msg("OAuth2 provider enabled")
	}

	var states oauth.StateStore
	if store.db != nil {
		states = oauth.NewBadgerStateStore(store.db)
	} else {
		mem := oauth.NewMemoryStateStore()
		tree.AddMaintenanceService(services.NewPeriodicService("oauth-state-sweeper", stateSweepInterval, mem.CleanupExpired))
		states = mem
	}

	return oauth.NewFlow(providers, states, auth.NewIdentityBridge(store.members, issuer), oauth.FlowConfig{
		StateTTL:         cfg.OAuth.StateTTL,
		ErrorRedirectURL: cfg.OAuth.ErrorRedirectURL,
	})
}
