// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

/*
Package services provides suture.Service wrappers for gateway components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Runs ListenAndServe and calls Shutdown with a timeout when the
    supervisor's context is canceled

Periodic Tasks (PeriodicService):
  - Runs a task on a fixed interval until the context is canceled
  - Used for OAuth state expiry and badger value log GC
  - Task errors are logged; the service keeps running

Every service implements fmt.Stringer so suture log lines name it.
*/
package services
