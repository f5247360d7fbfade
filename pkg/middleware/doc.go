// Package middleware provides HTTP middleware for authentication,
// authorization, and rate limiting.
//
// # Overview
//
// This package implements the per-request security chain: bearer-token
// authentication cross-checked against revocable sessions, role and
// permission guards over the attached authorization context, and
// policy-driven fixed-window rate limiting backed by a shared counter
// cache.
//
// # Middleware Components
//
// Authenticator: token + session authentication
//
//	authn := middleware.NewAuthenticator(tokens, sessions, users, perms, log, metrics)
//	router.Use(authn.Require)  // reject unauthenticated requests
//	router.Use(authn.Optional) // attach context when possible, never reject
//
// Guards: authorization over the attached context
//
//	router.Use(middleware.RequireRole(auth.RoleCityAdmin, auth.RoleSuperAdmin))
//	router.Use(middleware.RequirePermission(auth.PermBookingCreate))
//	router.Use(middleware.RequireOwnership("userId"))
//
// Limiter: policy-driven rate limiting
//
//	limiter := middleware.NewLimiter(cache, log, metrics)
//	registry := middleware.NewRegistry(middleware.DefaultPolicies())
//	router.Use(limiter.Middleware(registry.MustGet("api")))
//
// # Ordering
//
// The chain runs authentication, then guards, then rate limiting, then
// the domain handler. Rate-limit keys may derive from the authenticated
// identity, so user-keyed limiters must sit after the authenticator.
//
// # Failure Policy
//
// Authentication fails closed: any store error during the chain rejects
// the request. Rate limiting fails open: a counter cache error admits
// the request and is recorded in metrics.
//
// # Related Packages
//
//   - pkg/auth: tokens, sessions, roles, permissions
//   - pkg/ratelimit: counter cache implementations
//   - pkg/httputil: rejection envelope and response helpers
package middleware
