// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

/*
Package supervisor provides process supervision for the gateway using suture v4.

The tree has two layers, restarted independently:

	RootSupervisor ("cafegate")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── oauth-state-sweeper (in-memory OAuth state store only)
	│   └── badger-gc (persistent member store only)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A failing maintenance task never takes the API down with it.

Supervisor events (start, stop, failure, backoff) are logged through
sutureslog into the zerolog-backed slog handler from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped with error")
	}
*/
package supervisor
