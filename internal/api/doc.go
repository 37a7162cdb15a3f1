// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

// Package api wires the HTTP surface: the chi router, the security
// pipeline and the member endpoints that consume the caller's identity.
//
// # Pipeline
//
// Every request under the API base path passes three named stages in a
// fixed order:
//
//	cors -> verify -> authorize -> handler
//
// cors answers preflight requests and decorates responses, verify binds
// the caller's identity from the access token, authorize applies the
// access table. The order is checked when the pipeline is built. The
// login, refresh and OAuth2 routes establish identity themselves and only
// pass the cors stage.
//
// # Routes
//
//	POST  {base}/users/log-in                    password login
//	POST  {base}/users/refresh                   refresh token exchange
//	GET   {base}/oauth2/authorization/{provider} OAuth2 redirect
//	GET   {base}/login/oauth2/code/{provider}    OAuth2 callback
//	POST  {base}/members/sign-up                 member registration
//	POST  {base}/owners/sign-up                  owner registration
//	GET   {base}/members/mypage                  caller's profile
//	PATCH {base}/members/update                  caller's display name
//	GET   /healthz                               liveness
//	GET   /metrics                               Prometheus metrics
package api
