// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

/*
Package auth establishes who is calling.

It owns the three ways an identity reaches a request:

  - LoginAuthenticator: username and password on the login route
  - IdentityBridge: a profile asserted by an external OAuth2 provider
  - Middleware: an access token presented on any other route

Login and the bridge both end in the same token contract. On success the
response carries

	Authorization: Bearer <access token>
	Refresh: <refresh token>
	Role: <MEMBER|OWNER>

and nothing about the tokens is stored server side.

# Failures

Every failure is terminal for the request and is reported with one of the
Kind values below, as the error code of the JSON error envelope:

	MALFORMED_TOKEN          401  token present but unparseable
	SIGNATURE_INVALID        401  token signature does not verify
	EXPIRED_TOKEN            401  token past its expiry
	UNAUTHENTICATED          401  no identity where one is required
	FORBIDDEN                403  identity present, role insufficient
	CREDENTIAL_REJECTED      401  login failed, cause not disclosed
	IDENTITY_BRIDGE_FAILURE  401  external login could not be linked

A missing token is not a failure: the request continues as anonymous and
authorization decides whether that is enough.
*/
package auth
