// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cafegate/internal/api"
	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/authz"
	"github.com/tomtom215/cafegate/internal/config"
	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/member"
	"github.com/tomtom215/cafegate/internal/supervisor"
	"github.com/tomtom215/cafegate/internal/supervisor/services"
	"github.com/tomtom215/cafegate/internal/token"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("base_path", cfg.Server.BasePath).
		Bool("persistent_store", cfg.Store.Persistent()).
		Int("oauth_providers", len(cfg.OAuth.EnabledProviders())).
		Msg("Starting Cafegate")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === MEMBER STORE ===
	store, err := initStore(cfg, tree)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize member store")
	}
	defer store.Close()

	// === TOKENS ===
	codec, err := token.NewCodec(token.Config{
		Secret:     []byte(cfg.Token.Secret),
		Issuer:     cfg.Token.Issuer,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create token codec")
	}
	issuer := auth.NewTokenIssuer(codec)
	hasher := member.NewHasher(cfg.Security.BcryptCost)

	// === OAUTH2 ===
	flow, err := initOAuth(ctx, cfg, store, issuer, tree)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize OAuth2 login")
	}

	// === AUTHORIZATION ===
	engine, err := authz.NewEngine(authz.DefaultRules())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to compile authorization rules")
	}
	for i, rule := range engine.Rules() {
		logging.Debug().Int("index", i).Str("rule", rule.String()).Msg("Authorization rule")
	}

	// === HTTP ===
	router, err := api.NewRouter(cfg.Server.BasePath, &api.ChiMiddlewareConfig{
		CORSAllowedOrigins:    cfg.Security.CORSOrigins,
		CORSMaxAge:            cfg.Security.CORSMaxAge,
		AuthRateLimitRequests: cfg.Security.RateLimitReqs,
		AuthRateLimitWindow:   cfg.Security.RateLimitWindow,
		AuthRateLimitDisabled: cfg.Security.RateLimitDisabled,
	}, api.Deps{
		Login:      auth.NewLoginAuthenticator(member.NewPasswordVerifier(store.members, hasher), issuer),
		Refresh:    auth.NewRefreshHandler(codec, issuer, store.members),
		Verifier:   auth.NewMiddleware(codec),
		Authorizer: authz.NewMiddleware(engine, cfg.Server.BasePath),
		Handler:    api.NewHandler(store.members, hasher, store.health),
		OAuth:      flow,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create router")
	}
	logging.Info().Strs("pipeline", router.Pipeline().Names()).Msg("Request pipeline assembled")

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===
	logging.Info().Msg("Starting supervisor tree...")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Application stopped gracefully")
}
