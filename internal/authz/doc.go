// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

// Package authz decides whether the caller's role may perform a request.
//
// Access policy is an ordered table of rules. Each rule names an HTTP
// method (or "*"), an ant-style path pattern and either public access or a
// set of roles. The first rule whose method and pattern match the request
// decides it:
//
//	POST  /*/sign-up          public
//	*     /owners/**          OWNER
//	POST  /cafes/*/bookmark   MEMBER
//	GET   /cafes/*/edit       OWNER
//	GET   /cafes/**           MEMBER, OWNER
//	*     /cafes/**           OWNER
//	GET   /menus/*            MEMBER, OWNER
//	*     /menus/**           OWNER
//	*     /members/**         MEMBER
//	GET   /**                 public
//	*     /**                 MEMBER
//
// In patterns "*" matches one path segment and "**" any number of them;
// "/cafes/**" also matches "/cafes". Paths are evaluated relative to the
// API base path, so "/api/cafes/7" is checked as "/cafes/7".
//
// The table is compiled into a casbin model with a priority effect: each
// rule becomes one allow policy per permitted role followed by a catch-all
// deny, in table order. A denied anonymous caller gets UNAUTHENTICATED; a
// denied signed-in caller gets FORBIDDEN. A request matching no rule is
// denied.
//
// The engine is built once at startup and read-only afterwards, so it is
// shared by all requests without locking on the hot path beyond casbin's
// own read lock.
package authz
